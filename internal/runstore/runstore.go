// Package runstore persists transcription runs — final text, summary, trace,
// and audit report — in a PostgreSQL table so the review UI can list and
// replay past runs.
//
// The store serialises the pipeline trace and summary report as JSONB. Both
// *pgxpool.Pool and *pgx.Conn satisfy the [DB] interface.
package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/refua-labs/medscribe/internal/summary"
	"github.com/refua-labs/medscribe/internal/trace"
)

// Schema is the SQL DDL for the transcription_runs table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS transcription_runs (
    run_id            TEXT PRIMARY KEY,
    audio_path        TEXT NOT NULL DEFAULT '',
    duration_minutes  DOUBLE PRECISION NOT NULL DEFAULT 0,
    num_chunks        INTEGER NOT NULL DEFAULT 0,
    final_text        TEXT NOT NULL DEFAULT '',
    summary_text      TEXT NOT NULL DEFAULT '',
    validation_passed BOOLEAN NOT NULL DEFAULT true,
    trace             JSONB,
    summary_report    JSONB,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcription_runs_created ON transcription_runs(created_at DESC);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Run is one persisted transcription run.
type Run struct {
	RunID            string
	AudioPath        string
	DurationMinutes  float64
	NumChunks        int
	FinalText        string
	SummaryText      string
	ValidationPassed bool
	Trace            *trace.PipelineTrace
	SummaryReport    *summary.Report
	CreatedAt        time.Time
}

// RunInfo is the listing projection of a run, without the large text and
// JSONB payloads.
type RunInfo struct {
	RunID            string
	AudioPath        string
	DurationMinutes  float64
	NumChunks        int
	ValidationPassed bool
	CreatedAt        time.Time
}

// defaultListLimit bounds ListRuns when the caller passes a non-positive limit.
const defaultListLimit = 50

// Store persists runs in PostgreSQL. All methods are safe for concurrent use.
type Store struct {
	db DB
}

// New creates a new [Store] that uses the given database connection or pool.
// The caller is responsible for calling [Store.Migrate] to ensure the schema
// exists before issuing queries.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("runstore: migrate: %w", err)
	}
	return nil
}

// Save upserts a run keyed by its RunID and fills in CreatedAt.
func (s *Store) Save(ctx context.Context, run *Run) error {
	if run.RunID == "" {
		return errors.New("runstore: run_id must not be empty")
	}

	traceJSON, err := marshalOrNil(run.Trace)
	if err != nil {
		return fmt.Errorf("runstore: marshal trace: %w", err)
	}
	reportJSON, err := marshalOrNil(run.SummaryReport)
	if err != nil {
		return fmt.Errorf("runstore: marshal summary report: %w", err)
	}

	const query = `
		INSERT INTO transcription_runs (
			run_id, audio_path, duration_minutes, num_chunks,
			final_text, summary_text, validation_passed, trace, summary_report
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (run_id) DO UPDATE SET
			audio_path        = EXCLUDED.audio_path,
			duration_minutes  = EXCLUDED.duration_minutes,
			num_chunks        = EXCLUDED.num_chunks,
			final_text        = EXCLUDED.final_text,
			summary_text      = EXCLUDED.summary_text,
			validation_passed = EXCLUDED.validation_passed,
			trace             = EXCLUDED.trace,
			summary_report    = EXCLUDED.summary_report
		RETURNING created_at`

	err = s.db.QueryRow(ctx, query,
		run.RunID, run.AudioPath, run.DurationMinutes, run.NumChunks,
		run.FinalText, run.SummaryText, run.ValidationPassed, traceJSON, reportJSON,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("runstore: save: %w", err)
	}
	return nil
}

// Get retrieves a run by ID. It returns (nil, nil) if no run with the given
// ID exists.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	const query = `
		SELECT run_id, audio_path, duration_minutes, num_chunks,
		       final_text, summary_text, validation_passed, trace, summary_report,
		       created_at
		FROM   transcription_runs
		WHERE  run_id = $1`

	var (
		run        Run
		traceJSON  []byte
		reportJSON []byte
	)
	err := s.db.QueryRow(ctx, query, runID).Scan(
		&run.RunID, &run.AudioPath, &run.DurationMinutes, &run.NumChunks,
		&run.FinalText, &run.SummaryText, &run.ValidationPassed, &traceJSON, &reportJSON,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runstore: get %q: %w", runID, err)
	}

	if len(traceJSON) > 0 {
		run.Trace = &trace.PipelineTrace{}
		if err := json.Unmarshal(traceJSON, run.Trace); err != nil {
			return nil, fmt.Errorf("runstore: unmarshal trace for %q: %w", runID, err)
		}
	}
	if len(reportJSON) > 0 {
		run.SummaryReport = &summary.Report{}
		if err := json.Unmarshal(reportJSON, run.SummaryReport); err != nil {
			return nil, fmt.Errorf("runstore: unmarshal summary report for %q: %w", runID, err)
		}
	}
	return &run, nil
}

// List returns recent runs, newest first. A non-positive limit defaults to 50.
func (s *Store) List(ctx context.Context, limit int) ([]RunInfo, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	const query = `
		SELECT run_id, audio_path, duration_minutes, num_chunks,
		       validation_passed, created_at
		FROM   transcription_runs
		ORDER  BY created_at DESC
		LIMIT  $1`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var r RunInfo
		if err := rows.Scan(
			&r.RunID, &r.AudioPath, &r.DurationMinutes, &r.NumChunks,
			&r.ValidationPassed, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("runstore: scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runstore: iterate runs: %w", err)
	}
	return runs, nil
}

// Delete removes a run by ID. It returns an error if the run does not exist.
func (s *Store) Delete(ctx context.Context, runID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM transcription_runs WHERE run_id = $1`, runID)
	if err != nil {
		return fmt.Errorf("runstore: delete %q: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("runstore: run %q not found", runID)
	}
	return nil
}

// marshalOrNil serialises v to JSON, passing nil through so absent payloads
// persist as SQL NULL.
func marshalOrNil(v any) ([]byte, error) {
	switch val := v.(type) {
	case *trace.PipelineTrace:
		if val == nil {
			return nil, nil
		}
	case *summary.Report:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
