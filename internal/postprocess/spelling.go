package postprocess

import "strings"

// spellingFixes maps misheard substrings to their corrections, in application
// order. The entries were collected from recurring speech-engine errors on
// Hebrew consultations; a few normalize Hebrew renderings of English terms.
//
// Replacement is deliberately substring-based rather than word-boundary
// based: the keys were hand-picked to be vanishingly rare as incidental
// substrings, and the validated fixture set depends on this behavior. Do not
// tighten the matching.
var spellingFixes = []struct{ wrong, correct string }{
	{"עזות", "הזעות"},
	{"עקומול", "אקמול"},
	{"לעקומול", "לאקמול"},
	{"תחילות", "בחילות"},
	{"הרמונית", "ערמונית"},
	{"ההרמונית", "הערמונית"},
	{"מייחה", "ליחה"},
	{"מערך העצם", "מח העצם"},
	{"במערך העצם", "במח העצם"},
	{"ממערך העצם", "ממח העצם"},
	{"מהעצם", "ממח העצם"},
	{"פרוטיק", "פרטי"},
	{"בפרוטיק", "בפרטי"},
	{"העתק עדבק", "העתק הדבק"},
	{"כהי מים", "כולי מים"},
	{"כואי מים", "כולי מים"},
	{"הסמינים", "הסימפטומים"},
	{"במקריב", "בערב"},
	{"יציאה תקינות", "יציאות תקינות"},
	{"בליסה", "בלעיסה"},
	{"בכום הלב", "בקרום הלב"},
	{"רגישה יותר בנוח", "מרגישה יותר בנוח"},
	{"בנועל", "בנוהל"},
	{"קרדיולוק", "קרדילול"},
	{"חומס", "חום"},
	{"המסתרמות", "המסתמיות"},
	{"שאירו", "שלנו"},
	{"לדיין", "לדון"},
	{"חטפם", "התקף"},
	{"אולטרסאונד", "Ultrasound"},
	{"מולטאק", "Multaq"},
}

// protectedMedicalTerms are terms that must never be modified by the spelling
// stage: a dictionary key occurring inside one of these (when the term itself
// is present on the line) is left untouched.
var protectedMedicalTerms = []string{
	"DVT", "PE", "CT", "PET-CT", "PET CT", "TEE", "MRI", "ECG", "EKG",
	"IgG4", "IGG4", "Ultrasound", "Multaq", "Euthyrox", "Lipitor",
	"אנדוקרדיטיס", "סרקואיד", "לימפומה", "גרנולומות", "ביופסיה",
	"סטרואידים", "אימורן", "דיגוקסין", "פרוקור", "קרדילול",
}

// correctSpelling applies the dictionary fixes line by line, recording each
// applied replacement with its 1-based line number.
func correctSpelling(text string, report *Report) string {
	lines := strings.Split(text, "\n")
	fixed := make([]string, len(lines))

	for i, line := range lines {
		for _, fix := range spellingFixes {
			if !strings.Contains(line, fix.wrong) {
				continue
			}
			if insideProtectedTerm(line, fix.wrong) {
				continue
			}
			line = strings.ReplaceAll(line, fix.wrong, fix.correct)
			report.SpellingReplacements = append(report.SpellingReplacements,
				Replacement{Old: fix.wrong, New: fix.correct, Line: i + 1})
		}
		fixed[i] = line
	}

	return strings.Join(fixed, "\n")
}

// insideProtectedTerm reports whether word occurs as part of a protected
// medical term that itself appears on the line.
func insideProtectedTerm(line, word string) bool {
	for _, term := range protectedMedicalTerms {
		if strings.Contains(term, word) && strings.Contains(line, term) {
			return true
		}
	}
	return false
}
