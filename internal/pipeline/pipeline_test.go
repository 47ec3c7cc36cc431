package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/refua-labs/medscribe/internal/observe"
	"github.com/refua-labs/medscribe/internal/pipeline"
	"github.com/refua-labs/medscribe/pkg/provider/llm"
	llmmock "github.com/refua-labs/medscribe/pkg/provider/llm/mock"
	"github.com/refua-labs/medscribe/pkg/provider/stt"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func newTestPipeline(t *testing.T, opts ...pipeline.Option) *pipeline.Pipeline {
	t.Helper()
	opts = append([]pipeline.Option{
		pipeline.WithLogger(quietLogger()),
		pipeline.WithMetrics(testMetrics(t)),
	}, opts...)
	return pipeline.New(opts...)
}

var testChunks = []string{
	"[רופא]: שלום, מה שלומך היום?\n[מטופל]: כואב לי הראש כבר שלושה ימים",
	"[רופא]: מתי התחיל הכאב?\n[מטופל]: ביום ראשון בבוקר",
}

func TestRunEmptyChunksErrors(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t)
	_, err := p.Run(context.Background(), pipeline.Input{})
	if err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestRunMergesAndRecordsTrace(t *testing.T) {
	t.Parallel()
	var steps []string
	p := newTestPipeline(t, pipeline.WithStepObserver(func(stepID, _ string) {
		steps = append(steps, stepID)
	}))

	res, err := p.Run(context.Background(), pipeline.Input{Chunks: testChunks})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FinalText == "" {
		t.Fatal("empty final text")
	}
	if !strings.Contains(res.FinalText, "כואב לי הראש") {
		t.Errorf("final text lost content: %q", res.FinalText)
	}

	wantSteps := []string{
		"step_4_chunks_merged",
		"step_5a_normalized",
		"step_5b_spelling",
		"step_5c_deduplicated",
		"step_5d_semantic",
		"step_5e_validated",
	}
	if len(steps) != len(wantSteps) {
		t.Fatalf("observer saw %d steps, want %d: %v", len(steps), len(wantSteps), steps)
	}
	for i, want := range wantSteps {
		if steps[i] != want {
			t.Errorf("step[%d] = %q, want %q", i, steps[i], want)
		}
	}

	for _, id := range wantSteps {
		if _, ok := res.Trace.Step(id, nil); !ok {
			t.Errorf("trace is missing %s", id)
		}
	}
	if res.PostprocessReport == nil || !res.PostprocessReport.ValidationPassed {
		t.Errorf("expected passing postprocess report, got %+v", res.PostprocessReport)
	}
}

func TestRunAlignment(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, pipeline.WithAlignment(true))

	words := []stt.Word{
		{Text: "שלום", OffsetMS: 0, DurationMS: 400},
		{Text: "מה", OffsetMS: 500, DurationMS: 200},
		{Text: "שלומך", OffsetMS: 800, DurationMS: 400},
	}
	res, err := p.Run(context.Background(), pipeline.Input{
		Chunks: []string{"[רופא]: שלום מה שלומך"},
		Words:  words,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Aligned) == 0 {
		t.Fatal("expected aligned words")
	}
	if res.Aligned[0].StartMS == nil || *res.Aligned[0].StartMS != 0 {
		t.Errorf("first word start = %v, want 0", res.Aligned[0].StartMS)
	}
}

func TestRunAlignmentSkippedWithoutWords(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, pipeline.WithAlignment(true))

	res, err := p.Run(context.Background(), pipeline.Input{Chunks: testChunks})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Aligned != nil {
		t.Errorf("expected no alignment without STT words, got %d words", len(res.Aligned))
	}
}

func TestRunWithSummary(t *testing.T) {
	t.Parallel()
	draft := strings.Repeat("## תלונה עיקרית\nכאב ראש מזה שלושה ימים. ", 6)
	provider := &llmmock.Provider{
		CompleteResponses: []*llm.CompletionResponse{
			{Content: draft},
			{Content: `{"chief_complaint_ok": true, "overall_faithfulness_score": 9}`},
		},
	}
	p := newTestPipeline(t, pipeline.WithSummaryProvider(provider, "gpt-4o"))

	res, err := p.Run(context.Background(), pipeline.Input{Chunks: testChunks})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SummaryText != draft {
		t.Errorf("summary text altered: %q", res.SummaryText)
	}
	if res.SummaryReport == nil || !res.SummaryReport.ValidationPassed {
		t.Errorf("expected passing summary report, got %+v", res.SummaryReport)
	}
	if _, ok := res.Trace.Step("step_6a_summary_draft", nil); !ok {
		t.Error("trace is missing step_6a_summary_draft")
	}
	if _, ok := res.Trace.Step("step_6b_summary_validation", nil); !ok {
		t.Error("trace is missing step_6b_summary_validation")
	}
}

func TestRunSummaryProviderErrorPropagates(t *testing.T) {
	t.Parallel()
	provider := &llmmock.Provider{CompleteErr: errors.New("backend unreachable")}
	p := newTestPipeline(t, pipeline.WithSummaryProvider(provider, ""))

	_, err := p.Run(context.Background(), pipeline.Input{Chunks: testChunks})
	if err == nil {
		t.Fatal("expected provider error to propagate")
	}
	if !strings.Contains(err.Error(), "backend unreachable") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunRewriteGateKeepsOriginalOnShortOutput(t *testing.T) {
	t.Parallel()
	p := newTestPipeline(t, pipeline.WithRewriter(
		func(text string, numbers, terms []string) (string, error) {
			return "קצר", nil
		}))

	res, err := p.Run(context.Background(), pipeline.Input{Chunks: testChunks})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.FinalText, "כואב לי הראש") {
		t.Errorf("rewrite gate should have kept the original, got %q", res.FinalText)
	}
	if len(res.PostprocessReport.RewriteOutcomes) == 0 {
		t.Error("expected a rewrite-gate outcome")
	}
}

func TestRunLLMRewriteApplied(t *testing.T) {
	t.Parallel()
	rewritten := "[רופא]: שלום וברכה לך"
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: rewritten},
	}
	p := newTestPipeline(t, pipeline.WithRewriteProvider(provider))

	res, err := p.Run(context.Background(), pipeline.Input{
		Chunks: []string{"[רופא]: שלום וברכה"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(provider.CompleteCalls) != 1 {
		t.Fatalf("expected 1 rewrite call, got %d", len(provider.CompleteCalls))
	}
	prompt := provider.CompleteCalls[0].Req.Messages[0].Content
	if !strings.Contains(prompt, "אסור לשנות מספרים") {
		t.Errorf("rewrite prompt missing constraint preamble")
	}
	if res.FinalText != rewritten {
		t.Errorf("final text = %q, want rewritten %q", res.FinalText, rewritten)
	}
}
