package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RunMetadata describes one transcription run, written next to the trace as
// metadata.json.
type RunMetadata struct {
	AudioPath             string  `json:"audio_path"`
	DurationMinutes       float64 `json:"duration_minutes"`
	NumChunks             int     `json:"num_chunks"`
	Timestamp             string  `json:"timestamp"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// SaveMetadata writes the run metadata as indented JSON.
func SaveMetadata(path string, m RunMetadata) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("trace: create output dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("trace: marshal metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("trace: write %s: %w", path, err)
	}
	return nil
}

// SaveTranscript writes the final transcript text ([speaker]: utterance
// lines) to the given path.
func SaveTranscript(path, text string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("trace: create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("trace: write %s: %w", path, err)
	}
	return nil
}

// SaveChunks writes per-chunk transcripts as chunk_001.txt, chunk_002.txt, …
// under dir.
func SaveChunks(dir string, chunks []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("trace: create chunks dir: %w", err)
	}
	for i, text := range chunks {
		path := filepath.Join(dir, fmt.Sprintf("chunk_%03d.txt", i+1))
		if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
			return fmt.Errorf("trace: write %s: %w", path, err)
		}
	}
	return nil
}
