// Package postprocess cleans raw Hebrew consultation transcripts through a
// fixed stage pipeline: normalization, dictionary spelling correction,
// deduplication, an optional constrained rewrite behind a safety gate, and
// output validation. Every stage is deterministic except the injected
// rewriter, whose output is accepted only when it keeps the text intact
// enough to trust.
package postprocess

import "log/slog"

// StageID names one post-processing stage for observers.
type StageID string

const (
	StageNormalized   StageID = "normalized"
	StageSpelling     StageID = "spelling"
	StageDeduplicated StageID = "deduplicated"
	StageRewritten    StageID = "rewritten"
	StageValidated    StageID = "validated"
)

// Stages lists the post-processing stages in execution order.
var Stages = []StageID{
	StageNormalized, StageSpelling, StageDeduplicated, StageRewritten, StageValidated,
}

// Processor runs the post-processing pipeline. The zero value is not usable;
// construct with [New]. A Processor is immutable after construction and safe
// for concurrent use.
type Processor struct {
	rewriter Rewriter
	logger   *slog.Logger
	observer func(stage StageID, text string)
}

// Option configures a [Processor].
type Option func(*Processor)

// WithRewriter installs a constrained rewriter for the optional rewrite
// stage. Without it the stage is a no-op.
func WithRewriter(r Rewriter) Option {
	return func(p *Processor) {
		p.rewriter = r
	}
}

// WithStageObserver registers fn to be called with each stage's output text,
// in execution order. Useful for recording per-stage debug artifacts.
func WithStageObserver(fn func(stage StageID, text string)) Option {
	return func(p *Processor) {
		p.observer = fn
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = l
	}
}

// New constructs a Processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs every stage over text and returns the cleaned transcript with
// the full audit report. The returned text is usable even when the report
// says validation failed; callers decide how strict to be.
func (p *Processor) Process(text string) (string, *Report) {
	report := newReport()

	report.NumbersBefore = extractNumbers(text)
	report.TermsBefore = extractMedicalTerms(text)

	text = normalize(text, report)
	p.observe(StageNormalized, text)
	text = correctSpelling(text, report)
	p.observe(StageSpelling, text)
	text = collapseDuplicates(text, report)
	p.observe(StageDeduplicated, text)
	text = applyRewriteGate(text, p.rewriter, report)
	p.observe(StageRewritten, text)
	text = validate(text, report)
	p.observe(StageValidated, text)

	p.logger.Info("post-processing complete",
		"normalization_changes", len(report.NormalizationChanges),
		"spelling_replacements", len(report.SpellingReplacements),
		"duplicates_removed", report.DuplicatesRemoved,
		"warnings", len(report.Warnings),
		"validation_passed", report.ValidationPassed)

	return text, report
}

func (p *Processor) observe(stage StageID, text string) {
	if p.observer != nil {
		p.observer(stage, text)
	}
}
