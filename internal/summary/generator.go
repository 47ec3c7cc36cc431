// Package summary generates a structured Hebrew medical summary from a
// post-processed consultation transcript.
//
// Generation is a three-stage flow: an LLM drafts the summary from the
// transcript, deterministic medication checks and an LLM cross-validation
// audit the draft concurrently, and — when fabricated information is found —
// a fix pass asks the model to remove exactly those problems. Quality-control
// warnings are appended to the summary text as a dedicated section, and the
// full audit trail is returned as a [Report].
//
// The generator never fails on content problems: a broken validation reply
// leaves the report at its defaults, and a suspiciously short fix is
// discarded in favour of the original draft.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/refua-labs/medscribe/internal/medication"
	"github.com/refua-labs/medscribe/pkg/provider/llm"
)

const (
	// minFixRatio rejects fix outputs shorter than half the original draft;
	// a collapse that severe means the model dropped sections, not problems.
	minFixRatio = 0.5

	// passingScore is the minimum faithfulness score for validation to pass.
	passingScore = 7
)

// Tracer receives step timings and snapshots from the generator.
// *trace.PipelineTrace satisfies it.
type Tracer interface {
	StartTimer(stepID string)
	AddStep(stepID, text string, metadata map[string]any)
}

// Option is a functional option for configuring a [Generator].
type Option func(*Generator)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithTracer attaches a step tracer. Default: no tracing.
func WithTracer(t Tracer) Option {
	return func(g *Generator) {
		g.tracer = t
	}
}

// WithModelName sets the model name recorded in trace metadata. It does not
// select the model — that is fixed by the [llm.Provider] construction.
func WithModelName(name string) Option {
	return func(g *Generator) {
		g.model = name
	}
}

// Generator produces and validates medical summaries. It is safe for
// concurrent use.
type Generator struct {
	llm    llm.Provider
	model  string
	logger *slog.Logger
	tracer Tracer
}

// New returns a new [Generator] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) (*Generator, error) {
	if provider == nil {
		return nil, fmt.Errorf("summary: provider must not be nil")
	}
	g := &Generator{
		llm:    provider,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// Generate drafts, validates, and annotates a medical summary for the given
// transcription. The returned text includes any quality-control warnings; the
// report carries the full audit trail.
//
// An error is returned only when the draft call itself fails — validation and
// fix failures degrade gracefully.
func (g *Generator) Generate(ctx context.Context, transcription string) (string, *Report, error) {
	report := newReport()

	g.startTimer("step_6a_summary_draft")
	draft, err := g.draft(ctx, transcription)
	if err != nil {
		return "", report, fmt.Errorf("summary: draft: %w", err)
	}
	g.addStep("step_6a_summary_draft", draft, map[string]any{
		"model": g.model,
		"task":  "medical_summary_generation",
	})

	g.startTimer("step_6b_summary_validation")

	// Deterministic checks and the LLM cross-validation are independent;
	// run them concurrently.
	var (
		summaryCheck    medication.Result
		transcriptCheck medication.Result
		verdict         llmValidation
		verdictOK       bool
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		summaryCheck = medication.Check(draft)
		transcriptCheck = medication.Check(transcription)
		return nil
	})
	eg.Go(func() error {
		verdict, verdictOK = g.validate(egCtx, transcription, draft)
		return nil
	})
	_ = eg.Wait()

	report.MedsInSummary = summaryCheck.MedsFound
	report.MedsInTranscript = transcriptCheck.MedsFound
	report.DeterministicDuplicateGroups = summaryCheck.DuplicateGroups
	report.DeterministicDuplicatePairs = groupPairs(summaryCheck.DuplicateGroups)
	report.DeterministicDosageWarnings = summaryCheck.DosageWarnings
	if verdictOK {
		verdict.apply(report)
	}

	corrected := draft
	if len(report.FabricatedInfo) > 0 {
		g.startTimer("step_6c_summary_fix")
		corrected = g.fix(ctx, transcription, draft, report.FabricatedInfo)
		g.addStep("step_6c_summary_fix", corrected, map[string]any{
			"task":                     "summary_fix",
			"issues_fixed":             len(report.FabricatedInfo),
			"original_summary_length":  utf8.RuneCountInString(draft),
			"corrected_summary_length": utf8.RuneCountInString(corrected),
		})
	}

	final := injectWarnings(corrected, report)

	report.SummaryText = final
	report.ValidationPassed = len(report.HallucinatedMedications) == 0 &&
		len(report.FabricatedInfo) == 0 &&
		report.ChiefComplaintOK &&
		report.FaithfulnessScore >= passingScore

	g.addStep("step_6b_summary_validation", final, map[string]any{
		"task":               "summary_validation",
		"validation_passed":  report.ValidationPassed,
		"faithfulness_score": report.FaithfulnessScore,
		"issues_found": len(report.HallucinatedMedications) +
			len(report.DuplicateMedications) +
			len(report.SuspiciousDosages) +
			len(report.FabricatedInfo),
	})

	g.logger.Info("summary generated",
		"validation_passed", report.ValidationPassed,
		"faithfulness_score", report.FaithfulnessScore,
		"meds_in_summary", len(report.MedsInSummary),
		"dosage_warnings", len(report.DeterministicDosageWarnings),
	)

	return final, report, nil
}

func (g *Generator) startTimer(stepID string) {
	if g.tracer != nil {
		g.tracer.StartTimer(stepID)
	}
}

func (g *Generator) addStep(stepID, text string, metadata map[string]any) {
	if g.tracer != nil {
		g.tracer.AddStep(stepID, text, metadata)
	}
}

// draft asks the model to produce the structured summary.
func (g *Generator) draft(ctx context.Context, transcription string) (string, error) {
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages: []llm.Message{
			{
				Role: "user",
				Content: "הנה תמלול השיחה הרפואית. צור סיכום רפואי מובנה על בסיס התמלול בלבד.\n\n" +
					transcription,
			},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// validate asks the model to audit the summary against the transcript.
// Any failure — transport, missing JSON, bad JSON — yields ok=false.
func (g *Generator) validate(ctx context.Context, transcription, summaryText string) (llmValidation, bool) {
	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: validationPrompt,
		Messages: []llm.Message{
			{
				Role: "user",
				Content: "## תמלול מקורי:\n\n" + transcription +
					"\n\n## סיכום רפואי:\n\n" + summaryText,
			},
		},
	})
	if err != nil {
		g.logger.Warn("summary validation call failed", "error", err)
		return llmValidation{}, false
	}

	verdict, ok := parseValidation(resp.Content)
	if !ok {
		g.logger.Warn("summary validation reply had no parseable JSON")
	}
	return verdict, ok
}

// fix asks the model to remove exactly the listed problems. The original
// draft is kept when the call fails or the fix loses more than half the text.
func (g *Generator) fix(ctx context.Context, transcription, summaryText string, issues []string) string {
	var issuesText strings.Builder
	for _, issue := range issues {
		issuesText.WriteString("- ")
		issuesText.WriteString(issue)
		issuesText.WriteByte('\n')
	}

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fixPrompt,
		Messages: []llm.Message{
			{
				Role: "user",
				Content: "## תמלול מקורי:\n\n" + transcription +
					"\n\n## סיכום רפואי לתיקון:\n\n" + summaryText +
					"\n\n## בעיות שזוהו (יש לתקן רק אותן):\n\n" + issuesText.String(),
			},
		},
	})
	if err != nil {
		g.logger.Warn("summary fix call failed, keeping original", "error", err)
		return summaryText
	}

	fixed := strings.TrimSpace(resp.Content)
	if float64(utf8.RuneCountInString(fixed)) < float64(utf8.RuneCountInString(summaryText))*minFixRatio {
		g.logger.Warn("fixed summary too short, keeping original",
			"original_length", utf8.RuneCountInString(summaryText),
			"fixed_length", utf8.RuneCountInString(fixed),
		)
		return summaryText
	}
	return fixed
}

// injectWarnings appends a quality-control section listing every issue the
// checks raised. A clean report leaves the summary untouched.
func injectWarnings(summaryText string, r *Report) string {
	var warnings []string

	for _, med := range r.HallucinatedMedications {
		warnings = append(warnings, "⚠️ תרופה שייתכן שלא הוזכרה בתמלול: "+med)
	}

	for _, group := range r.DeterministicDuplicateGroups {
		warnings = append(warnings, fmt.Sprintf(
			"⚠️ כפילות תרופתית אפשרית: %s ו-%s הן ככל הנראה אותה תרופה",
			strings.Join(group[:len(group)-1], ", "), group[len(group)-1],
		))
	}

	for _, w := range r.DeterministicDosageWarnings {
		warnings = append(warnings, "⚠️ "+w)
	}

	deterministic := strings.Join(r.DeterministicDosageWarnings, "\n")
	for _, dosage := range r.SuspiciousDosages {
		if !strings.Contains(deterministic, dosage) {
			warnings = append(warnings, "⚠️ מינון חשוד: "+dosage)
		}
	}

	for _, info := range r.FabricatedInfo {
		warnings = append(warnings, "⚠️ מידע שייתכן שלא הוזכר בתמלול: "+info)
	}

	for _, med := range r.UnrecognizedMedications {
		warnings = append(warnings, "⚠️ תרופה לא מזוהה במאגר ATC: "+annotateSuggestion(med))
	}

	for _, cond := range r.UnrecognizedConditions {
		warnings = append(warnings, "⚠️ מחלת רקע לא מזוהה במערכת ICD: "+cond)
	}

	for _, sym := range r.MisclassifiedSymptoms {
		warnings = append(warnings, "⚠️ תסמין שסווג כמחלת רקע: "+sym)
	}

	if !r.ChiefComplaintOK {
		warnings = append(warnings, "⚠️ תלונה עיקרית: "+r.ChiefComplaintNote)
	}

	if len(warnings) == 0 {
		return summaryText
	}

	lines := strings.Split(summaryText, "\n")
	lines = append(lines, "", "", "---אזהרות בקרת איכות---", "")
	for _, w := range warnings {
		lines = append(lines, "• "+w)
	}
	return strings.Join(lines, "\n")
}

// annotateSuggestion appends a nearest-known-medication guess to an
// unrecognized-medication warning, when the validator did not already guess.
func annotateSuggestion(warning string) string {
	if strings.Contains(warning, "ייתכן") {
		return warning
	}

	name := warning
	if idx := strings.IndexAny(name, " —-("); idx > 0 {
		name = name[:idx]
	}
	suggestion, confidence, ok := medication.Suggest(name)
	if !ok || confidence >= 1 {
		return warning
	}
	return fmt.Sprintf("%s (ייתכן: %s)", warning, suggestion)
}

// groupPairs expands duplicate groups into all unordered pairs.
func groupPairs(groups [][]string) [][2]string {
	var pairs [][2]string
	for _, names := range groups {
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				pairs = append(pairs, [2]string{names[i], names[j]})
			}
		}
	}
	return pairs
}
