package postprocess

import (
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// minRewriteRatio is the minimum acceptable length of a rewrite result
// relative to its input, measured in runes. Shorter results are rejected.
const minRewriteRatio = 0.9

// Rewriter performs a constrained free-form rewrite of text. numbers and
// terms are the extracted invariants the rewrite must preserve; how they are
// enforced is the rewriter's concern (typically an LLM prompt). A rewriter
// returning its input unchanged is always an acceptable outcome.
type Rewriter func(text string, numbers []string, terms []string) (string, error)

// applyRewriteGate runs the injected rewriter with pre-extracted invariants
// and a post-hoc size sanity check. Any failure — an error from the callback
// or an implausibly short result — degrades to returning the input text
// unchanged; the gate never propagates an error.
func applyRewriteGate(text string, rewriter Rewriter, report *Report) string {
	if rewriter == nil {
		return text
	}

	numbers := extractNumbers(text)
	terms := sortedTerms(extractMedicalTerms(text))

	result, err := rewriter(text, numbers, terms)
	if err != nil {
		report.RewriteOutcomes = append(report.RewriteOutcomes,
			RewriteOutcome{Line: 0, Reason: fmt.Sprintf("rewrite error: %v, keeping original", err)})
		slog.Warn("rewrite gate: callback failed, keeping original", "err", err)
		return text
	}

	if float64(utf8.RuneCountInString(result)) < float64(utf8.RuneCountInString(text))*minRewriteRatio {
		report.RewriteOutcomes = append(report.RewriteOutcomes,
			RewriteOutcome{Line: 0, Reason: "output too short, keeping original"})
		slog.Warn("rewrite gate: result too short, keeping original",
			"input_len", utf8.RuneCountInString(text),
			"output_len", utf8.RuneCountInString(result),
		)
		return text
	}

	return result
}
