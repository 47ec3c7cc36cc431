package medication

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// dosagePattern matches a drug name followed by a dose in mg, in either
// Latin or Hebrew notation. \p{L} keeps Hebrew drug names matchable.
var dosagePattern = regexp.MustCompile(`(?i)([\p{L}\p{N}_][\p{L}\p{N}_-]*)\s+(\d+(?:\.\d+)?)\s*(?:mg|מ"ג|מג)`)

const (
	// doseLowFactor and doseHighFactor widen the standard range before a
	// dose is flagged; outliers within the widened band pass silently.
	doseLowFactor  = 0.5
	doseHighFactor = 1.5
)

// Result holds the findings of one reconciliation pass over a text.
type Result struct {
	// DuplicateGroups lists, per equivalence group, the names from that
	// group found in the text — only groups with more than one hit.
	DuplicateGroups [][]string

	// DosageWarnings describes each dose outside the widened standard
	// range, in Hebrew, naming the drug, the dose, and the range.
	DosageWarnings []string

	// MedsFound lists every known medication name present in the text,
	// sorted.
	MedsFound []string
}

// Check scans text for known medications and returns duplicate-name groups,
// implausible dosages, and the full list of recognized names. Matching is
// case-insensitive substring search, so inflected Hebrew forms containing a
// known name still count.
func Check(text string) Result {
	lower := strings.ToLower(text)

	var result Result

	found := map[string]struct{}{}
	for _, group := range equivalenceGroups {
		var hits []string
		for _, name := range group {
			if strings.Contains(lower, strings.ToLower(name)) {
				hits = append(hits, name)
				found[name] = struct{}{}
			}
		}
		if len(hits) > 1 {
			result.DuplicateGroups = append(result.DuplicateGroups, hits)
		}
	}

	for name := range found {
		result.MedsFound = append(result.MedsFound, name)
	}
	sort.Strings(result.MedsFound)

	result.DosageWarnings = checkDosages(text)

	return result
}

// checkDosages flags doses outside doseLowFactor*min..doseHighFactor*max of
// the standard range. Unknown drug names are skipped; the suggester handles
// those separately.
func checkDosages(text string) []string {
	var warnings []string
	for _, m := range dosagePattern.FindAllStringSubmatch(text, -1) {
		name, doseText := m[1], m[2]
		rng, ok := dosageRanges[strings.ToLower(name)]
		if !ok {
			continue
		}
		dose, err := strconv.ParseFloat(doseText, 64)
		if err != nil {
			continue
		}
		if dose < rng.min*doseLowFactor || dose > rng.max*doseHighFactor {
			warnings = append(warnings, fmt.Sprintf(
				"%s %s mg — מינון חריג (טווח סטנדרטי: %g-%g mg). ייתכן שגיאת תמלול.",
				name, doseText, rng.min, rng.max))
		}
	}
	return warnings
}
