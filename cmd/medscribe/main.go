// Command medscribe reconciles Hebrew medical consultation transcripts:
// merging chunked STT output, cleaning it, aligning timestamps, and
// generating a validated medical summary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/refua-labs/medscribe/internal/chunkmerge"
	"github.com/refua-labs/medscribe/internal/config"
	"github.com/refua-labs/medscribe/internal/medication"
	"github.com/refua-labs/medscribe/internal/observe"
	"github.com/refua-labs/medscribe/internal/pipeline"
	"github.com/refua-labs/medscribe/internal/runstore"
	"github.com/refua-labs/medscribe/internal/trace"
	"github.com/refua-labs/medscribe/pkg/provider/llm"
	"github.com/refua-labs/medscribe/pkg/provider/llm/anyllm"
	"github.com/refua-labs/medscribe/pkg/provider/llm/openai"
	"github.com/refua-labs/medscribe/pkg/provider/stt"
	"github.com/refua-labs/medscribe/pkg/provider/stt/azure"
)

func main() {
	os.Exit(run())
}

const usage = `usage: medscribe <command> [flags]

commands:
  process    run the full reconciliation pipeline over a consultation
  merge      merge chunk transcripts and print the result
  checkmeds  run the medication audit over a transcript file
  runs       list persisted runs

run "medscribe <command> -h" for command flags.`

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "process":
		return runProcess(ctx, os.Args[2:])
	case "merge":
		return runMerge(os.Args[2:])
	case "checkmeds":
		return runCheckMeds(os.Args[2:])
	case "runs":
		return runList(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "medscribe: unknown command %q\n%s\n", os.Args[1], usage)
		return 2
	}
}

// ── process ──────────────────────────────────────────────────────────────────

func runProcess(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := fs.String("audio", "", "audio file to transcribe before reconciliation")
	chunksDir := fs.String("chunks", "", "directory of pre-transcribed chunk .txt files")
	outDir := fs.String("out", "output", "directory for the final transcript and debug artifacts")
	fs.Parse(args)

	if *audioPath == "" && *chunksDir == "" {
		fmt.Fprintln(os.Stderr, "medscribe: process needs -audio or -chunks")
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "medscribe: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "medscribe: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("medscribe starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "medscribe"})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	if addr := cfg.Server.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observe.Handler())
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Warn("metrics endpoint error", "err", err)
			}
		}()
		slog.Info("metrics endpoint up", "addr", addr)
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	var llmProvider llm.Provider
	if name := cfg.Providers.LLM.Name; name != "" {
		llmProvider, err = reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			slog.Error("failed to create llm provider", "name", name, "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "llm", "name", name)
	}

	var sttProvider stt.Provider
	if name := cfg.Providers.STT.Name; name != "" {
		sttProvider, err = reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			slog.Error("failed to create stt provider", "name", name, "err", err)
			return 1
		}
		slog.Info("provider created", "kind", "stt", "name", name)
	}

	// ── Input ─────────────────────────────────────────────────────────────────
	start := time.Now()
	in := pipeline.Input{AudioPath: *audioPath}
	var durationMinutes float64

	switch {
	case *chunksDir != "":
		chunks, err := readChunks(*chunksDir)
		if err != nil {
			slog.Error("failed to read chunks", "dir", *chunksDir, "err", err)
			return 1
		}
		in.Chunks = chunks

	case *audioPath != "":
		if sttProvider == nil {
			fmt.Fprintln(os.Stderr, "medscribe: -audio needs a configured STT provider")
			return 1
		}
		f, err := os.Open(*audioPath)
		if err != nil {
			slog.Error("failed to open audio", "path", *audioPath, "err", err)
			return 1
		}
		result, err := sttProvider.Transcribe(ctx, stt.TranscribeRequest{
			Audio:    f,
			Filename: filepath.Base(*audioPath),
			Language: cfg.Pipeline.Language,
		})
		f.Close()
		if err != nil {
			slog.Error("transcription failed", "err", err)
			return 1
		}
		in.Chunks = []string{result.Text}
		in.Words = result.Words
		durationMinutes = float64(result.DurationMS) / 60_000
		slog.Info("transcription complete",
			"words", len(result.Words),
			"duration_ms", result.DurationMS)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithAlignment(cfg.Pipeline.Alignment),
	}
	if cfg.Pipeline.Rewrite && llmProvider != nil {
		opts = append(opts, pipeline.WithRewriteProvider(llmProvider))
	}
	if cfg.Pipeline.Summary && llmProvider != nil {
		opts = append(opts, pipeline.WithSummaryProvider(llmProvider, cfg.Providers.LLM.Model))
	}

	res, err := pipeline.New(opts...).Run(ctx, in)
	if err != nil {
		slog.Error("pipeline failed", "err", err)
		return 1
	}

	// ── Artifacts ─────────────────────────────────────────────────────────────
	if err := writeArtifacts(cfg, *outDir, in, res, durationMinutes, time.Since(start)); err != nil {
		slog.Error("failed to write artifacts", "err", err)
		return 1
	}

	// ── Persistence ───────────────────────────────────────────────────────────
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		if err := persistRun(ctx, dsn, in, res, durationMinutes); err != nil {
			slog.Error("failed to persist run", "err", err)
			return 1
		}
		slog.Info("run persisted", "run_id", res.Trace.RunID)
	}

	// ── Console report ────────────────────────────────────────────────────────
	fmt.Println(res.PostprocessReport.Format())
	if res.SummaryReport != nil {
		fmt.Println(res.SummaryReport.String())
	}
	slog.Info("done",
		"run_id", res.Trace.RunID,
		"out", *outDir,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return 0
}

// writeArtifacts saves the final transcript, trace, metadata, and chunk files
// under outDir.
func writeArtifacts(cfg *config.Config, outDir string, in pipeline.Input, res *pipeline.Result, durationMinutes float64, elapsed time.Duration) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create %q: %w", outDir, err)
	}

	if err := trace.SaveTranscript(filepath.Join(outDir, "final_transcription.txt"), res.FinalText); err != nil {
		return err
	}
	if res.SummaryText != "" {
		if err := trace.SaveTranscript(filepath.Join(outDir, "medical_summary.txt"), res.SummaryText); err != nil {
			return err
		}
	}

	meta := trace.RunMetadata{
		AudioPath:             in.AudioPath,
		DurationMinutes:       durationMinutes,
		NumChunks:             len(in.Chunks),
		Timestamp:             res.Trace.CreatedAt,
		ProcessingTimeSeconds: elapsed.Seconds(),
	}
	if err := trace.SaveMetadata(filepath.Join(outDir, "metadata.json"), meta); err != nil {
		return err
	}

	if cfg.Trace.OutputDir != "" {
		debugDir := cfg.Trace.OutputDir
		if err := res.Trace.Save(filepath.Join(debugDir, res.Trace.RunID+"_trace.json")); err != nil {
			return err
		}
		if err := trace.SaveChunks(filepath.Join(debugDir, "chunks"), in.Chunks); err != nil {
			return err
		}
	}
	return nil
}

// persistRun stores the completed run in PostgreSQL.
func persistRun(ctx context.Context, dsn string, in pipeline.Input, res *pipeline.Result, durationMinutes float64) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	store := runstore.New(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}

	run := &runstore.Run{
		RunID:            res.Trace.RunID,
		AudioPath:        in.AudioPath,
		DurationMinutes:  durationMinutes,
		NumChunks:        len(in.Chunks),
		FinalText:        res.FinalText,
		SummaryText:      res.SummaryText,
		ValidationPassed: res.PostprocessReport.ValidationPassed,
		Trace:            res.Trace,
		SummaryReport:    res.SummaryReport,
	}
	if res.SummaryReport != nil {
		run.ValidationPassed = run.ValidationPassed && res.SummaryReport.ValidationPassed
	}
	return store.Save(ctx, run)
}

// ── merge ────────────────────────────────────────────────────────────────────

func runMerge(args []string) int {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	chunksDir := fs.String("chunks", "", "directory of chunk .txt files")
	verbose := fs.Bool("v", false, "print merge diagnostics to stderr")
	fs.Parse(args)

	if *chunksDir == "" {
		fmt.Fprintln(os.Stderr, "medscribe: merge needs -chunks")
		return 2
	}
	chunks, err := readChunks(*chunksDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "medscribe: %v\n", err)
		return 1
	}
	merged, err := chunkmerge.Merge(chunks)
	if err != nil {
		fmt.Fprintf(os.Stderr, "medscribe: %v\n", err)
		return 1
	}
	if *verbose {
		fmt.Fprintln(os.Stderr, chunkmerge.Describe(chunks, merged))
	}
	fmt.Println(merged)
	return 0
}

// ── checkmeds ────────────────────────────────────────────────────────────────

func runCheckMeds(args []string) int {
	fs := flag.NewFlagSet("checkmeds", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: medscribe checkmeds <transcript.txt>")
		return 2
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "medscribe: %v\n", err)
		return 1
	}

	result := medication.Check(string(data))
	fmt.Printf("medications found: %d\n", len(result.MedsFound))
	for _, name := range result.MedsFound {
		fmt.Printf("  - %s\n", name)
	}
	for _, group := range result.DuplicateGroups {
		fmt.Printf("duplicate group: %s\n", strings.Join(group, ", "))
	}
	for _, warning := range result.DosageWarnings {
		fmt.Printf("dosage warning: %s\n", warning)
	}
	if len(result.DuplicateGroups) == 0 && len(result.DosageWarnings) == 0 {
		fmt.Println("no warnings")
	}
	return 0
}

// ── runs ─────────────────────────────────────────────────────────────────────

func runList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	limit := fs.Int("limit", 20, "maximum number of runs to list")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "medscribe: %v\n", err)
		return 1
	}
	if cfg.Storage.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "medscribe: storage.postgres_dsn is not configured")
		return 1
	}

	pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "medscribe: connect postgres: %v\n", err)
		return 1
	}
	defer pool.Close()

	runs, err := runstore.New(pool).List(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "medscribe: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return 0
	}
	for _, r := range runs {
		status := "passed"
		if !r.ValidationPassed {
			status = "FAILED"
		}
		fmt.Printf("%s  %-8s  chunks=%d  %s\n",
			r.CreatedAt.Format(time.RFC3339), status, r.NumChunks, r.AudioPath)
	}
	return 0
}

// ── Provider wiring ──────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// openai has a dedicated client; the rest go through any-llm.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterSTT("azure", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []azure.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, azure.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, azure.WithEndpoint(entry.BaseURL))
		}
		return azure.New(entry.APIKey, entry.Region, opts...)
	})
}

// ── Helpers ──────────────────────────────────────────────────────────────────

// readChunks reads every .txt file in dir, sorted by name, and returns the
// contents as chunk transcripts.
func readChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no .txt chunks in %q", dir)
	}
	sort.Strings(names)

	chunks := make([]string, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read chunk %q: %w", name, err)
		}
		chunks = append(chunks, string(data))
	}
	return chunks, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
