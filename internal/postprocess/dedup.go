package postprocess

import (
	"strings"
	"unicode"

	"github.com/refua-labs/medscribe/internal/textmatch"
)

// Near-duplicate detection calibration. The threshold and window sizes were
// tuned against recorded consultations; they are not derived from anything.
const (
	// dedupWindowLines is the maximum number of consecutive lines compared
	// as one block.
	dedupWindowLines = 4

	// dedupLookback is how many kept output positions are re-examined for an
	// earlier occurrence of the current block.
	dedupLookback = 20

	// dedupSimilarityThreshold is the matching-block ratio above which a
	// block counts as a repeat of an earlier one.
	dedupSimilarityThreshold = 0.85
)

// hebrewFinalFold maps Hebrew sentence-final letter forms to their medial
// equivalents so that "שלום" and "שלומ" fingerprint identically.
var hebrewFinalFold = strings.NewReplacer(
	"ך", "כ",
	"ם", "מ",
	"ן", "נ",
	"ף", "פ",
	"ץ", "צ",
)

// collapseDuplicates removes exact-duplicate adjacent lines, then
// near-duplicate blocks reintroduced across chunk boundaries or retries.
// Dropped line numbers are recorded relative to the text entering each pass.
func collapseDuplicates(text string, report *Report) string {
	lines := strings.Split(text, "\n")

	// Pass 1: exact adjacent duplicates by fingerprint.
	deduped := make([]string, 0, len(lines))
	prevFingerprint := ""
	for i, line := range lines {
		fp := fingerprint(line)
		if fp != "" && fp == prevFingerprint {
			report.DuplicatesRemoved++
			report.DuplicateLines = append(report.DuplicateLines, i+1)
			continue
		}
		prevFingerprint = fp
		deduped = append(deduped, line)
	}

	deduped = removeNearDuplicateBlocks(deduped, report)

	return strings.Join(deduped, "\n")
}

// fingerprint produces the normalized comparison form of a line: speaker tag
// stripped, lowercased, punctuation removed, whitespace collapsed, Hebrew
// final letters folded. Blank lines fingerprint to "".
func fingerprint(line string) string {
	if strings.TrimSpace(line) == "" {
		return ""
	}

	for _, tag := range ValidSpeakers {
		if strings.HasPrefix(line, tag) {
			line = line[len(tag):]
			break
		}
	}

	line = strings.ToLower(line)
	line = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, line)
	line = strings.Join(strings.Fields(line), " ")

	return hebrewFinalFold.Replace(line)
}

// removeNearDuplicateBlocks drops lines that start a block highly similar to
// a block already present in the kept output. Blocks are up to
// dedupWindowLines consecutive non-blank lines; only the last dedupLookback
// kept positions are compared. Lines are dropped one at a time, never whole
// blocks.
func removeNearDuplicateBlocks(lines []string, report *Report) []string {
	if len(lines) < dedupWindowLines {
		return lines
	}

	result := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		current := blockFingerprints(lines, i)
		if len(current) == 0 {
			result = append(result, lines[i])
			continue
		}
		blockText := strings.Join(current, " ")

		isDuplicate := false
		start := len(result) - dedupLookback
		if start < 0 {
			start = 0
		}
		for k := start; k < len(result); k++ {
			compare := blockFingerprints(result, k)
			compareText := strings.Join(compare, " ")
			if blockText == "" || compareText == "" {
				continue
			}
			if textmatch.Ratio(blockText, compareText) > dedupSimilarityThreshold {
				isDuplicate = true
				report.DuplicatesRemoved++
				report.DuplicateLines = append(report.DuplicateLines, i+1)
				break
			}
		}

		if !isDuplicate {
			result = append(result, lines[i])
		}
	}

	return result
}

// blockFingerprints returns the fingerprints of up to dedupWindowLines
// non-blank lines starting at position start.
func blockFingerprints(lines []string, start int) []string {
	var fps []string
	for j := 0; j < dedupWindowLines && start+j < len(lines); j++ {
		if strings.TrimSpace(lines[start+j]) != "" {
			fps = append(fps, fingerprint(lines[start+j]))
		}
	}
	return fps
}
