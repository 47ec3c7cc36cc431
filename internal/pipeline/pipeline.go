// Package pipeline orchestrates the transcription reconciliation flow: chunk
// merging, transcript post-processing, optional timestamp alignment, and
// optional medical summary generation. Each stage is recorded in a
// [trace.PipelineTrace] and reported through the configured metrics.
//
// The pipeline never fails a run over content problems — those surface as
// warnings in the stage reports. Errors are reserved for infrastructure
// failures such as an unreachable LLM backend.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/refua-labs/medscribe/internal/align"
	"github.com/refua-labs/medscribe/internal/chunkmerge"
	"github.com/refua-labs/medscribe/internal/observe"
	"github.com/refua-labs/medscribe/internal/postprocess"
	"github.com/refua-labs/medscribe/internal/postprocess/llmrewrite"
	"github.com/refua-labs/medscribe/internal/summary"
	"github.com/refua-labs/medscribe/internal/trace"
	"github.com/refua-labs/medscribe/pkg/provider/llm"
	"github.com/refua-labs/medscribe/pkg/provider/stt"
)

// stageSteps maps post-processing stages to their trace step IDs.
var stageSteps = map[postprocess.StageID]string{
	postprocess.StageNormalized:   "step_5a_normalized",
	postprocess.StageSpelling:     "step_5b_spelling",
	postprocess.StageDeduplicated: "step_5c_deduplicated",
	postprocess.StageRewritten:    "step_5d_semantic",
	postprocess.StageValidated:    "step_5e_validated",
}

// StepObserver is called after every recorded pipeline step with the step ID
// and the text the step produced. Useful for progress reporting.
type StepObserver func(stepID, text string)

// Input is the material one run works on.
type Input struct {
	// Chunks holds the per-chunk transcripts, in audio order, with
	// "[speaker]: utterance" lines.
	Chunks []string

	// Words is the STT word stream for timestamp alignment. May be empty,
	// in which case alignment is skipped even when enabled.
	Words []stt.Word

	// AudioPath is recorded in the trace metadata. Informational only.
	AudioPath string
}

// Result is the outcome of one run.
type Result struct {
	// FinalText is the cleaned, merged transcript.
	FinalText string

	// PostprocessReport is the audit report of the cleaning stages.
	PostprocessReport *postprocess.Report

	// Aligned carries per-word timestamps. Nil when alignment did not run.
	Aligned []align.AnnotatedWord

	// SummaryText and SummaryReport are set when summary generation ran.
	SummaryText   string
	SummaryReport *summary.Report

	// Trace is the full step-by-step record of the run.
	Trace *trace.PipelineTrace
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics installs the metrics instruments. Without it the pipeline
// records to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithProcessor replaces the default post-processor. The pipeline installs
// its own stage observer on processors it constructs itself, so callers
// supplying one lose per-substage trace steps.
func WithProcessor(proc *postprocess.Processor) Option {
	return func(p *Pipeline) {
		p.proc = proc
	}
}

// WithRewriter installs a constrained rewriter for the post-processing
// rewrite stage.
func WithRewriter(r postprocess.Rewriter) Option {
	return func(p *Pipeline) {
		p.rewriter = r
	}
}

// WithRewriteProvider enables the LLM-backed rewrite stage. Ignored when
// [WithRewriter] is also given.
func WithRewriteProvider(provider llm.Provider) Option {
	return func(p *Pipeline) {
		p.rewriteLLM = provider
	}
}

// WithSummaryProvider enables the medical summary stage, backed by the given
// LLM provider. model is recorded in the trace metadata; empty falls back to
// the generator default.
func WithSummaryProvider(provider llm.Provider, model string) Option {
	return func(p *Pipeline) {
		p.summaryLLM = provider
		p.summaryModel = model
	}
}

// WithAlignment enables word-level timestamp alignment.
func WithAlignment(enabled bool) Option {
	return func(p *Pipeline) {
		p.alignment = enabled
	}
}

// WithStepObserver registers a callback invoked after each recorded step.
func WithStepObserver(fn StepObserver) Option {
	return func(p *Pipeline) {
		p.observer = fn
	}
}

// Pipeline runs the reconciliation flow. Construct with [New]; a Pipeline is
// immutable after construction and safe for concurrent runs.
type Pipeline struct {
	proc         *postprocess.Processor
	rewriter     postprocess.Rewriter
	rewriteLLM   llm.Provider
	summaryLLM   llm.Provider
	summaryModel string
	alignment    bool
	observer     StepObserver
	logger       *slog.Logger
	metrics      *observe.Metrics
}

// New constructs a Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// Run executes the pipeline over in and returns the result together with the
// completed trace. The returned error is non-nil only for infrastructure
// failures; content problems land in the reports.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	if len(in.Chunks) == 0 {
		return nil, fmt.Errorf("pipeline: no chunks to process")
	}

	tr := trace.New()
	correlationID := uuid.NewString()
	logger := p.logger.With("run_id", tr.RunID, "correlation_id", correlationID)
	logger.Info("pipeline run started", "num_chunks", len(in.Chunks), "audio_path", in.AudioPath)

	p.metrics.ActiveRuns.Add(ctx, 1)
	defer p.metrics.ActiveRuns.Add(ctx, -1)

	res := &Result{Trace: tr}

	// Stage 1: chunk merging.
	tr.StartTimer("step_4_chunks_merged")
	mergeStart := time.Now()
	merged, err := chunkmerge.Merge(in.Chunks)
	if err != nil {
		return nil, fmt.Errorf("pipeline: merge chunks: %w", err)
	}
	p.metrics.MergeDuration.Record(ctx, time.Since(mergeStart).Seconds())
	tr.AddStep("step_4_chunks_merged", merged, map[string]any{
		"num_chunks": len(in.Chunks),
	})
	p.notify("step_4_chunks_merged", merged)

	// Stage 2: post-processing, with per-substage trace steps.
	proc := p.proc
	if proc == nil {
		procOpts := []postprocess.Option{
			postprocess.WithLogger(logger),
			postprocess.WithStageObserver(p.stageRecorder(tr)),
		}
		switch {
		case p.rewriter != nil:
			procOpts = append(procOpts, postprocess.WithRewriter(p.rewriter))
		case p.rewriteLLM != nil:
			procOpts = append(procOpts, postprocess.WithRewriter(llmrewrite.New(ctx, p.rewriteLLM)))
		}
		proc = postprocess.New(procOpts...)
	}

	tr.StartTimer(stageSteps[postprocess.Stages[0]])
	postStart := time.Now()
	final, report := proc.Process(merged)
	p.metrics.PostprocessDuration.Record(ctx, time.Since(postStart).Seconds())
	p.metrics.LinesDeduplicated.Add(ctx, int64(report.DuplicatesRemoved))
	// Rewrite outcomes are recorded only when the gate kept the original.
	p.metrics.RewriteFallbacks.Add(ctx, int64(len(report.RewriteOutcomes)))
	res.FinalText = final
	res.PostprocessReport = report

	// Stage 3: optional timestamp alignment.
	if p.alignment && len(in.Words) > 0 {
		res.Aligned = align.Timestamps(in.Words, final)
		logger.Info("alignment complete", "words", len(res.Aligned))
	}

	// Stage 4: optional medical summary.
	if p.summaryLLM != nil {
		sumOpts := []summary.Option{
			summary.WithLogger(logger),
			summary.WithTracer(tr),
		}
		if p.summaryModel != "" {
			sumOpts = append(sumOpts, summary.WithModelName(p.summaryModel))
		}
		gen, err := summary.New(p.summaryLLM, sumOpts...)
		if err != nil {
			return nil, fmt.Errorf("pipeline: summary: %w", err)
		}

		sumStart := time.Now()
		text, sumReport, err := gen.Generate(ctx, final)
		if err != nil {
			return nil, fmt.Errorf("pipeline: summary: %w", err)
		}
		p.metrics.SummaryDuration.Record(ctx, time.Since(sumStart).Seconds())
		p.metrics.RecordSummaryValidation(ctx, sumReport.ValidationPassed)
		for range sumReport.DeterministicDosageWarnings {
			p.metrics.RecordMedicationWarning(ctx, "dosage")
		}
		for range sumReport.DeterministicDuplicateGroups {
			p.metrics.RecordMedicationWarning(ctx, "duplicate")
		}
		for range sumReport.UnrecognizedMedications {
			p.metrics.RecordMedicationWarning(ctx, "unrecognized")
		}
		res.SummaryText = text
		res.SummaryReport = sumReport
		p.notify("step_6b_summary_validation", text)
	}

	logger.Info("pipeline run complete",
		"final_chars", len(final),
		"postprocess_passed", report.ValidationPassed,
		"summary_generated", res.SummaryText != "")
	return res, nil
}

// stageRecorder returns a postprocess stage observer that records each
// substage in tr and arms the timer for the next one.
func (p *Pipeline) stageRecorder(tr *trace.PipelineTrace) func(postprocess.StageID, string) {
	next := make(map[postprocess.StageID]string, len(postprocess.Stages))
	for i, stage := range postprocess.Stages[:len(postprocess.Stages)-1] {
		next[stage] = stageSteps[postprocess.Stages[i+1]]
	}

	return func(stage postprocess.StageID, text string) {
		stepID := stageSteps[stage]
		tr.AddStep(stepID, text, nil)
		if n, ok := next[stage]; ok {
			tr.StartTimer(n)
		}
		p.notify(stepID, text)
	}
}

func (p *Pipeline) notify(stepID, text string) {
	if p.observer != nil {
		p.observer(stepID, text)
	}
}
