// Package trace captures the text state after every pipeline step for
// debugging and UI display.
//
// A [PipelineTrace] accumulates [StepSnapshot] values for one transcription
// run and serializes them to a JSON artifact whose schema is shared with the
// review UI. Per-chunk steps carry a chunk index; whole-file steps do not.
package trace

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// timestampLayout mimics ISO-8601 without a zone offset, as the artifact
// consumers expect.
const timestampLayout = "2006-01-02T15:04:05.000000"

// stepDefinitions lists the known step IDs with display names. Order matters
// for UI display.
var stepDefinitions = []struct {
	id   string
	name string
}{
	{"step_0_chunking", "Audio Chunking"},
	{"step_1_pure", "Pure Transcription (no speakers)"},
	{"step_2_diarized", "Diarized Transcription (with speakers)"},
	{"step_3_merged", "LLM Merge (per chunk)"},
	{"step_4_chunks_merged", "Chunk Merging"},
	{"step_5a_normalized", "Post-Process: Normalization"},
	{"step_5b_spelling", "Post-Process: Spelling Fixes"},
	{"step_5c_deduplicated", "Post-Process: Deduplication"},
	{"step_5d_semantic", "Post-Process: Semantic Fix (LLM)"},
	{"step_5e_validated", "Post-Process: Validation (Final)"},
	{"step_6a_summary_draft", "Medical Summary: Generation (LLM)"},
	{"step_6b_summary_validation", "Medical Summary: Validation"},
}

// stepName resolves a step ID to its display name, falling back to the ID
// itself for steps outside the fixed definitions (e.g. the summary fix pass).
func stepName(stepID string) string {
	for _, d := range stepDefinitions {
		if d.id == stepID {
			return d.name
		}
	}
	return stepID
}

// stepOrder returns the UI sort rank of a step ID. Unknown IDs sort last.
func stepOrder(stepID string) int {
	for i, d := range stepDefinitions {
		if d.id == stepID {
			return i
		}
	}
	return len(stepDefinitions)
}

// StepSnapshot is the text state at one point in the pipeline.
type StepSnapshot struct {
	// StepID identifies the pipeline stage, e.g. "step_5b_spelling".
	StepID string

	// StepName is the human-readable stage name.
	StepName string

	// Text is the full text after this step.
	Text string

	// ChunkIndex is nil for whole-file steps, 0..N-1 for per-chunk steps.
	ChunkIndex *int

	// Timestamp records when the step completed.
	Timestamp string

	// DurationSeconds is how long the step took, when a timer was started.
	DurationSeconds float64

	// Metadata carries extra stage information (model, parameters, counts).
	Metadata map[string]any
}

// CharCount returns the rune length of the snapshot text.
func (s StepSnapshot) CharCount() int {
	return utf8.RuneCountInString(s.Text)
}

// LineCount returns the number of lines in the snapshot text. Empty text has
// zero lines; a trailing newline does not add one.
func (s StepSnapshot) LineCount() int {
	if s.Text == "" {
		return 0
	}
	n := strings.Count(s.Text, "\n")
	if !strings.HasSuffix(s.Text, "\n") {
		n++
	}
	return n
}

// PipelineTrace accumulates snapshots for a single transcription run.
// It is safe for concurrent use.
type PipelineTrace struct {
	mu sync.Mutex

	// RunID names the run, derived from the start time.
	RunID string

	// CreatedAt records when the trace was created.
	CreatedAt string

	steps  []StepSnapshot
	timers map[string]time.Time
}

// New returns an empty trace stamped with the current time.
func New() *PipelineTrace {
	now := time.Now()
	return &PipelineTrace{
		RunID:     now.Format("20060102_150405"),
		CreatedAt: now.Format(timestampLayout),
		timers:    map[string]time.Time{},
	}
}

// StartTimer marks the beginning of a step so its duration can be recorded
// by the next AddStep/AddChunkStep call with the same ID.
func (t *PipelineTrace) StartTimer(stepID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timers[stepID] = time.Now()
}

// AddStep records the text state after a whole-file pipeline step.
func (t *PipelineTrace) AddStep(stepID, text string, metadata map[string]any) {
	t.record(stepID, text, nil, metadata)
}

// AddChunkStep records the text state after a per-chunk pipeline step.
func (t *PipelineTrace) AddChunkStep(stepID string, chunkIndex int, text string, metadata map[string]any) {
	idx := chunkIndex
	t.record(stepID, text, &idx, metadata)
}

func (t *PipelineTrace) record(stepID, text string, chunkIndex *int, metadata map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	duration := 0.0
	if started, ok := t.timers[stepID]; ok {
		duration = math.Round(time.Since(started).Seconds()*100) / 100
		delete(t.timers, stepID)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	t.steps = append(t.steps, StepSnapshot{
		StepID:          stepID,
		StepName:        stepName(stepID),
		Text:            text,
		ChunkIndex:      chunkIndex,
		Timestamp:       time.Now().Format(timestampLayout),
		DurationSeconds: duration,
		Metadata:        metadata,
	})
}

// Step retrieves a specific snapshot. Pass a nil chunkIndex for whole-file
// steps. The second return value reports whether the step was found.
func (t *PipelineTrace) Step(stepID string, chunkIndex *int) (StepSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.steps {
		if s.StepID != stepID {
			continue
		}
		if (s.ChunkIndex == nil) != (chunkIndex == nil) {
			continue
		}
		if s.ChunkIndex == nil || *s.ChunkIndex == *chunkIndex {
			return s, true
		}
	}
	return StepSnapshot{}, false
}

// WholeFileSteps returns the non-chunk steps in pipeline display order.
func (t *PipelineTrace) WholeFileSteps() []StepSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	var whole []StepSnapshot
	for _, s := range t.steps {
		if s.ChunkIndex == nil {
			whole = append(whole, s)
		}
	}
	sort.SliceStable(whole, func(i, j int) bool {
		return stepOrder(whole[i].StepID) < stepOrder(whole[j].StepID)
	})
	return whole
}

// ChunkSteps returns all snapshots recorded for the given chunk.
func (t *PipelineTrace) ChunkSteps(chunkIndex int) []StepSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	var steps []StepSnapshot
	for _, s := range t.steps {
		if s.ChunkIndex != nil && *s.ChunkIndex == chunkIndex {
			steps = append(steps, s)
		}
	}
	return steps
}

// NumChunks reports how many distinct chunks were traced.
func (t *PipelineTrace) NumChunks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.numChunksLocked()
}

func (t *PipelineTrace) numChunksLocked() int {
	indices := map[int]struct{}{}
	for _, s := range t.steps {
		if s.ChunkIndex != nil {
			indices[*s.ChunkIndex] = struct{}{}
		}
	}
	return len(indices)
}

// Steps returns a copy of all recorded snapshots in recording order.
func (t *PipelineTrace) Steps() []StepSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StepSnapshot, len(t.steps))
	copy(out, t.steps)
	return out
}

type stepJSON struct {
	StepID          string         `json:"step_id"`
	StepName        string         `json:"step_name"`
	ChunkIndex      *int           `json:"chunk_index"`
	CharCount       int            `json:"char_count"`
	LineCount       int            `json:"line_count"`
	Timestamp       string         `json:"timestamp"`
	DurationSeconds float64        `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata"`
	Text            string         `json:"text"`
}

type traceJSON struct {
	RunID      string     `json:"run_id"`
	CreatedAt  string     `json:"created_at"`
	NumChunks  int        `json:"num_chunks"`
	TotalSteps int        `json:"total_steps"`
	Steps      []stepJSON `json:"steps"`
}

// MarshalJSON serializes the trace in the artifact schema.
func (t *PipelineTrace) MarshalJSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := traceJSON{
		RunID:      t.RunID,
		CreatedAt:  t.CreatedAt,
		NumChunks:  t.numChunksLocked(),
		TotalSteps: len(t.steps),
		Steps:      make([]stepJSON, len(t.steps)),
	}
	for i, s := range t.steps {
		out.Steps[i] = stepJSON{
			StepID:          s.StepID,
			StepName:        s.StepName,
			ChunkIndex:      s.ChunkIndex,
			CharCount:       s.CharCount(),
			LineCount:       s.LineCount(),
			Timestamp:       s.Timestamp,
			DurationSeconds: s.DurationSeconds,
			Metadata:        s.Metadata,
			Text:            s.Text,
		}
	}
	return json.Marshal(out)
}

// Save writes the trace as indented JSON, creating parent directories.
func (t *PipelineTrace) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("trace: create output dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("trace: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("trace: write %s: %w", path, err)
	}
	return nil
}

// UnmarshalJSON restores a trace from the artifact schema. Derived fields
// (char_count, line_count, num_chunks, total_steps) are recomputed, not read.
func (t *PipelineTrace) UnmarshalJSON(data []byte) error {
	var raw traceJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.RunID = raw.RunID
	t.CreatedAt = raw.CreatedAt
	t.timers = map[string]time.Time{}
	t.steps = nil
	for _, s := range raw.Steps {
		metadata := s.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		t.steps = append(t.steps, StepSnapshot{
			StepID:          s.StepID,
			StepName:        s.StepName,
			Text:            s.Text,
			ChunkIndex:      s.ChunkIndex,
			Timestamp:       s.Timestamp,
			DurationSeconds: s.DurationSeconds,
			Metadata:        metadata,
		})
	}
	return nil
}

// Load reads a trace previously written by Save.
func Load(path string) (*PipelineTrace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trace: read %s: %w", path, err)
	}

	t := &PipelineTrace{timers: map[string]time.Time{}}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("trace: parse %s: %w", path, err)
	}
	return t, nil
}
