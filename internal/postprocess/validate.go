package postprocess

import (
	"fmt"
	"sort"
	"strings"
)

// untaggedLineTolerance is how many non-blank lines may lack a recognized
// speaker tag before the validator warns about diarization quality.
const untaggedLineTolerance = 5

// speakerImbalanceRatio is the share of tagged lines one speaker may hold
// before an imbalance warning is raised.
const speakerImbalanceRatio = 0.9

// validate re-extracts numbers and medical terms from the fully processed
// text and compares them with the before-pipeline snapshots. Missing numbers
// or terms fail validation; newly introduced terms are advisory only.
// Speaker-tag statistics are checked last. The text is returned unchanged —
// validation is purely a reporting step and never raises.
func validate(text string, report *Report) string {
	report.NumbersAfter = extractNumbers(text)
	report.TermsAfter = extractMedicalTerms(text)

	// Numbers preserved.
	numbersBefore := map[string]struct{}{}
	for _, n := range report.NumbersBefore {
		numbersBefore[n] = struct{}{}
	}
	numbersAfter := map[string]struct{}{}
	for _, n := range report.NumbersAfter {
		numbersAfter[n] = struct{}{}
	}
	var missingNumbers []string
	for n := range numbersBefore {
		if _, ok := numbersAfter[n]; !ok {
			missingNumbers = append(missingNumbers, n)
		}
	}
	if len(missingNumbers) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Numbers changed/missing: %v", sortedStrings(missingNumbers)))
		report.ValidationPassed = false
	}

	// Medical terms preserved.
	var missingTerms []string
	for t := range report.TermsBefore {
		if _, ok := report.TermsAfter[t]; !ok {
			missingTerms = append(missingTerms, t)
		}
	}
	if len(missingTerms) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Medical terms missing: %v", sortedStrings(missingTerms)))
		report.ValidationPassed = false
	}

	// Newly introduced terms: advisory, after filtering case-only variants
	// and spelling-dictionary targets (those are expected to appear).
	beforeLower := map[string]struct{}{}
	for t := range report.TermsBefore {
		beforeLower[strings.ToLower(t)] = struct{}{}
	}
	spellingTargets := map[string]struct{}{}
	for _, fix := range spellingFixes {
		spellingTargets[fix.correct] = struct{}{}
	}
	var newTerms []string
	for t := range report.TermsAfter {
		if _, existed := report.TermsBefore[t]; existed {
			continue
		}
		if _, caseVariant := beforeLower[strings.ToLower(t)]; caseVariant {
			continue
		}
		if _, fromDictionary := spellingTargets[t]; fromDictionary {
			continue
		}
		newTerms = append(newTerms, t)
	}
	if len(newTerms) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("New medical terms introduced (possible hallucination): %v", sortedStrings(newTerms)))
	}

	validateSpeakerTags(text, report)

	return text
}

// validateSpeakerTags computes per-tag line counts and warns on untagged
// lines and extreme speaker imbalance (a likely diarization failure).
func validateSpeakerTags(text string, report *Report) {
	counts := map[string]int{}
	untagged := 0

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		tagged := false
		for _, tag := range ValidSpeakers {
			if strings.HasPrefix(line, tag) {
				counts[tag]++
				tagged = true
				break
			}
		}
		if !tagged {
			untagged++
		}
	}

	if untagged > untaggedLineTolerance {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d lines without speaker tags", untagged))
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	if total > 0 {
		for _, tag := range ValidSpeakers {
			count := counts[tag]
			if share := float64(count) / float64(total); share > speakerImbalanceRatio {
				report.Warnings = append(report.Warnings,
					fmt.Sprintf("Speaker imbalance: %s has %d/%d lines (%.0f%%)",
						tag, count, total, 100*share))
			}
		}
	}
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
