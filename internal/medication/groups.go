// Package medication reconciles drug mentions in transcripts and summaries:
// it detects brand/generic duplicates, flags implausible dosages, and
// suggests the nearest known name for unrecognized mentions.
package medication

import (
	"sort"
	"strings"
)

// equivalenceGroups lists medication names that denote the same drug: brand
// names, generic names, and their common Hebrew renderings. Mentioning two
// names from one group in a summary is almost always a transcription or
// summarization duplicate, not two prescriptions.
var equivalenceGroups = [][]string{
	// ACE inhibitors
	{"Ramipril", "Tritace", "רמיפריל", "טריטייס", "טרייטייס"},
	{"Enalapril", "Renitec", "אנלפריל", "רניטק"},
	// Beta blockers
	{"Cardiloc", "Bisoprolol", "קרדילוק", "ביסופרולול"},
	{"Nebivolol", "Nebilet", "נביוולול", "נבילט"},
	// Statins
	{"Lipitor", "Atorvastatin", "ליפיטור", "אטורבסטטין"},
	{"Crestor", "Rosuvastatin", "קרסטור", "רוזובסטטין"},
	{"Simvastatin", "Simvacor", "סימבסטטין", "סימבקור"},
	// Cholesterol absorption inhibitors
	{"Ezetrol", "Ezetimibe", "אזטרול", "אזטימיב"},
	{"Timibe", "Ezetimibe", "טימיב", "אזטימיב"},
	// Ezetimibe+statin combination
	{"Inegy", "Ezetimibe/Simvastatin", "אניגי"},
	// ARBs
	{"Losartan", "Ocsaar", "לוסרטן", "אוקסאר"},
	{"Valsartan", "Diovan", "ולסרטן", "דיובן"},
	// Diuretics
	{"Spironolactone", "Aldactone", "ספירונולקטון", "אלדקטון"},
	{"Furosemide", "Fusid", "Lasix", "פורוסמיד", "פיוסיד", "לסיקס"},
	// Anticoagulants
	{"Eliquis", "Apixaban", "אליקוויס", "אפיקסבן"},
	{"Xarelto", "Rivaroxaban", "קסרלטו", "ריברוקסבן"},
	{"Pradaxa", "Dabigatran", "פרדקסה", "דביגטרן"},
	// Antiplatelets
	{"Aspirin Cardio", "Aspirin", "Micropirin", "אספירין", "מיקרופירין", "אספירין קרדיו", "קרדיו אספירין"},
	{"Effient", "Prasugrel", "אפיינט", "פרזוגרל"},
	{"Plavix", "Clopidogrel", "פלוויקס", "קלופידוגרל"},
	// Diabetes
	{"Metformin", "Glucophage", "Glucomin", "מטפורמין", "גלוקופאג'", "גלוקומין"},
	{"Jardiance", "Empagliflozin", "ג'רדיאנס", "אמפגליפלוזין"},
	{"Ozempic", "Semaglutide", "אוזמפיק", "סמגלוטייד"},
	{"Trulicity", "Dulaglutide", "טרוליסיטי", "דולגלוטייד"},
	// Proton pump inhibitors
	{"Nexium", "Esomeprazole", "נקסיום", "אסומפרזול"},
	{"Omeprazole", "Losec", "Omepradex", "אומפרזול", "לוסק", "אומפרדקס"},
	{"Opodix", "Dexlansoprazole", "אופודיקס"},
	// Sleep
	{"Zopiclone", "Nocturno", "Imovane", "זופיקלון", "נוקטורנו", "אימובן"},
	// Antidepressants
	{"Cipralex", "Escitalopram", "ציפרלקס", "אסציטלופרם"},
	// Benzodiazepines
	{"Clonex", "Clonazepam", "קלונקס", "קלונזפם"},
	{"Lorivan", "Lorazepam", "לוריבן", "לורזפם"},
	// Thyroid
	{"Euthyrox", "Levothyroxine", "Eltroxin", "אותירוקס", "לבותירוקסין", "אלטרוקסין"},
	// Antiarrhythmics
	{"Multaq", "Dronedarone", "מולטאק", "דרונדרון"},
}

// doseRange is an approximate clinical single-dose range in mg. Outliers get
// flagged, not blocked.
type doseRange struct {
	min, max float64
}

// dosageRanges maps lowercase drug names to their standard single-dose range.
var dosageRanges = map[string]doseRange{
	"ramipril":       {1.25, 10},
	"tritace":        {1.25, 10},
	"bisoprolol":     {1.25, 10},
	"cardiloc":       {1.25, 10},
	"enalapril":      {2.5, 40},
	"losartan":       {25, 100},
	"valsartan":      {40, 320},
	"atorvastatin":   {10, 80},
	"lipitor":        {10, 80},
	"rosuvastatin":   {5, 40},
	"crestor":        {5, 40},
	"simvastatin":    {5, 80},
	"ezetimibe":      {10, 10},
	"ezetrol":        {10, 10},
	"spironolactone": {12.5, 200},
	"aldactone":      {12.5, 200},
	"furosemide":     {20, 600},
	"aspirin":        {75, 325},
	"prasugrel":      {5, 10},
	"effient":        {5, 10},
	"clopidogrel":    {75, 75},
	"plavix":         {75, 75},
	"apixaban":       {2.5, 5},
	"eliquis":        {2.5, 5},
	"rivaroxaban":    {10, 20},
	"xarelto":        {10, 20},
	"metformin":      {500, 2550},
	"glucophage":     {500, 2550},
	"empagliflozin":  {10, 25},
	"jardiance":      {10, 25},
	"zopiclone":      {3.75, 7.5},
	"nocturno":       {3.75, 7.5},
	"escitalopram":   {5, 20},
	"cipralex":       {5, 20},
	"clonazepam":     {0.25, 6},
	"clonex":         {0.25, 6},
	"lorazepam":      {0.5, 6},
	"lorivan":        {0.5, 6},
	"omeprazole":     {10, 40},
	"esomeprazole":   {20, 40},
	"nexium":         {20, 40},
	"levothyroxine":  {12.5, 300},
	"euthyrox":       {12.5, 300},
	"eltroxin":       {12.5, 300},
}

// groupIndex maps normalized medication names to their group's position in
// equivalenceGroups. Names are indexed lowercase, plus dash-stripped and
// apostrophe-stripped variants.
var groupIndex = buildGroupIndex()

func buildGroupIndex() map[string]int {
	index := map[string]int{}
	for i, group := range equivalenceGroups {
		for _, name := range group {
			lower := strings.ToLower(name)
			index[lower] = i
			index[strings.ReplaceAll(lower, "-", "")] = i
			index[strings.ReplaceAll(lower, "'", "")] = i
		}
	}
	return index
}

// GroupFor returns the equivalence group containing name, or nil when the
// name is unknown. Lookup is case-insensitive and tolerates stray dashes and
// apostrophes.
func GroupFor(name string) []string {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, key := range []string{
		lower,
		strings.ReplaceAll(lower, "-", ""),
		strings.ReplaceAll(lower, "'", ""),
	} {
		if i, ok := groupIndex[key]; ok {
			return equivalenceGroups[i]
		}
	}
	return nil
}

// KnownNames returns every medication name from the equivalence groups,
// sorted and deduplicated.
func KnownNames() []string {
	seen := map[string]struct{}{}
	var names []string
	for _, group := range equivalenceGroups {
		for _, name := range group {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
