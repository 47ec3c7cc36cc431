package postprocess

import (
	"fmt"
	"sort"
	"strings"
)

// Replacement records one dictionary spelling fix.
type Replacement struct {
	// Old is the misheard substring that was replaced.
	Old string
	// New is the correction substituted for Old.
	New string
	// Line is the 1-based line number the replacement was applied on.
	Line int
}

// RewriteOutcome records the result of one constrained-rewrite attempt.
type RewriteOutcome struct {
	// Line is the 1-based line the outcome refers to; 0 means the whole text.
	Line int
	// Reason describes why the rewrite result was accepted or rejected.
	Reason string
}

// Report is the audit trail for a single [Processor.Process] invocation.
// It is created fresh per call and owned exclusively by that call — stages
// thread it explicitly; it is never shared across concurrent runs.
type Report struct {
	// NormalizationChanges lists one entry per line changed by normalization.
	NormalizationChanges []string

	// SpellingReplacements lists every dictionary fix applied, in order.
	SpellingReplacements []Replacement

	// DuplicatesRemoved counts lines dropped by both deduplication passes.
	DuplicatesRemoved int

	// DuplicateLines holds the 1-based numbers of the dropped lines, relative
	// to the text as it entered the pass that dropped them.
	DuplicateLines []int

	// RewriteOutcomes records rewrite-gate rejections and failures.
	RewriteOutcomes []RewriteOutcome

	// Warnings holds the validation findings, in the order they were detected.
	Warnings []string

	// NumbersBefore and NumbersAfter snapshot every numeric token extracted
	// from the text before the first stage and after the last.
	NumbersBefore []string
	NumbersAfter  []string

	// TermsBefore and TermsAfter snapshot the medical terms extracted before
	// the first stage and after the last.
	TermsBefore map[string]struct{}
	TermsAfter  map[string]struct{}

	// ValidationPassed is false when any number or medical term present
	// before processing is missing afterwards.
	ValidationPassed bool
}

// newReport returns an empty Report with ValidationPassed preset to true.
func newReport() *Report {
	return &Report{
		TermsBefore:      map[string]struct{}{},
		TermsAfter:       map[string]struct{}{},
		ValidationPassed: true,
	}
}

// Format renders the report for console display.
func (r *Report) Format() string {
	lines := []string{
		strings.Repeat("=", 60),
		"POST-PROCESSING REPORT",
		strings.Repeat("=", 60),
		"",
		fmt.Sprintf("Normalization: %d changes", len(r.NormalizationChanges)),
		fmt.Sprintf("Spelling: %d replacements", len(r.SpellingReplacements)),
		fmt.Sprintf("Deduplication: %d duplicates removed", r.DuplicatesRemoved),
		fmt.Sprintf("Rewrite gate: %d outcomes", len(r.RewriteOutcomes)),
		"",
	}
	if r.ValidationPassed {
		lines = append(lines, "Validation: PASSED")
	} else {
		lines = append(lines, "Validation: FAILED")
	}

	if len(r.Warnings) > 0 {
		lines = append(lines, "", "Warnings:")
		for _, w := range r.Warnings {
			lines = append(lines, "  ! "+w)
		}
	}

	if len(r.SpellingReplacements) > 0 {
		lines = append(lines, "", "Spelling replacements:")
		shown := r.SpellingReplacements
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, rep := range shown {
			lines = append(lines, fmt.Sprintf("  Line %d: %q -> %q", rep.Line, rep.Old, rep.New))
		}
		if extra := len(r.SpellingReplacements) - len(shown); extra > 0 {
			lines = append(lines, fmt.Sprintf("  ... and %d more", extra))
		}
	}

	lines = append(lines, strings.Repeat("=", 60))
	return strings.Join(lines, "\n")
}

// sortedTerms returns the members of a term set in lexicographic order.
// Used when a warning message needs a deterministic rendering of a set.
func sortedTerms(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
