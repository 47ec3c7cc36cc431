package runstore

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/refua-labs/medscribe/internal/summary"
	"github.com/refua-labs/medscribe/internal/trace"
)

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

type mockRows struct {
	rows [][]any
	idx  int
	err  error
}

func (m *mockRows) Close()                                       {}
func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) Next() bool {
	if m.idx >= len(m.rows) {
		return false
	}
	m.idx++
	return true
}

func (m *mockRows) Scan(dest ...any) error {
	row := m.rows[m.idx-1]
	for i, d := range dest {
		if i >= len(row) {
			break
		}
		switch v := d.(type) {
		case *string:
			*v = row[i].(string)
		case *float64:
			*v = row[i].(float64)
		case *int:
			*v = row[i].(int)
		case *bool:
			*v = row[i].(bool)
		case *time.Time:
			*v = row[i].(time.Time)
		case *[]byte:
			if row[i] == nil {
				*v = nil
			} else {
				*v = row[i].([]byte)
			}
		}
	}
	return nil
}

func (m *mockRows) Values() ([]any, error) { return nil, nil }
func (m *mockRows) RawValues() [][]byte    { return nil }
func (m *mockRows) Conn() *pgx.Conn        { return nil }

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.queryRowFunc(ctx, sql, args...)
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return m.queryFunc(ctx, sql, args...)
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return m.execFunc(ctx, sql, args...)
}

var _ DB = (*mockDB)(nil)

func TestMigrateExecutesSchema(t *testing.T) {
	var gotSQL string
	db := &mockDB{
		execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
			gotSQL = sql
			return pgconn.CommandTag{}, nil
		},
	}

	if err := New(db).Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !strings.Contains(gotSQL, "CREATE TABLE IF NOT EXISTS transcription_runs") {
		t.Errorf("Migrate did not execute the schema DDL, got: %s", gotSQL)
	}
}

func TestSaveRequiresRunID(t *testing.T) {
	store := New(&mockDB{})
	err := store.Save(context.Background(), &Run{})
	if err == nil {
		t.Fatal("expected error for empty run_id")
	}
}

func TestSaveUpsertsAndFillsCreatedAt(t *testing.T) {
	now := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	var gotSQL string
	var gotArgs []any
	db := &mockDB{
		queryRowFunc: func(_ context.Context, sql string, args ...any) pgx.Row {
			gotSQL = sql
			gotArgs = args
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*time.Time) = now
				return nil
			}}
		},
	}

	tr := trace.New()
	tr.AddStep("step_5e_validated", "טקסט סופי", nil)
	run := &Run{
		RunID:            tr.RunID,
		AudioPath:        "consult.wav",
		DurationMinutes:  12.5,
		NumChunks:        2,
		FinalText:        "טקסט סופי",
		ValidationPassed: true,
		Trace:            tr,
	}
	if err := New(db).Save(context.Background(), run); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if !strings.Contains(gotSQL, "ON CONFLICT (run_id) DO UPDATE") {
		t.Errorf("expected upsert query, got: %s", gotSQL)
	}
	if len(gotArgs) != 9 {
		t.Fatalf("expected 9 args, got %d", len(gotArgs))
	}
	if gotArgs[0] != tr.RunID {
		t.Errorf("arg 0 = %v, want run ID %q", gotArgs[0], tr.RunID)
	}
	traceJSON, ok := gotArgs[7].([]byte)
	if !ok || !json.Valid(traceJSON) {
		t.Fatalf("arg 7 is not valid JSON: %v", gotArgs[7])
	}
	if gotArgs[8] != nil {
		t.Errorf("nil summary report should persist as NULL, got %v", gotArgs[8])
	}
	if !run.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt = %v, want %v", run.CreatedAt, now)
	}
}

func TestGetNotFoundReturnsNil(t *testing.T) {
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(_ ...any) error { return pgx.ErrNoRows }}
		},
	}

	run, err := New(db).Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run != nil {
		t.Errorf("expected nil run for missing ID, got %+v", run)
	}
}

func TestGetRoundTripsJSONPayloads(t *testing.T) {
	tr := trace.New()
	tr.AddStep("step_4_chunks_merged", "שורה אחת\nשורה שתיים", map[string]any{"model": "gpt-4o"})
	traceJSON, err := json.Marshal(tr)
	if err != nil {
		t.Fatal(err)
	}
	reportJSON, err := json.Marshal(&summary.Report{
		HallucinatedMedications: []string{"Warfarin"},
		FaithfulnessScore:       6,
	})
	if err != nil {
		t.Fatal(err)
	}

	created := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*string) = tr.RunID
				*dest[1].(*string) = "consult.wav"
				*dest[2].(*float64) = 12.5
				*dest[3].(*int) = 2
				*dest[4].(*string) = "טקסט סופי"
				*dest[5].(*string) = "סיכום"
				*dest[6].(*bool) = false
				*dest[7].(*[]byte) = traceJSON
				*dest[8].(*[]byte) = reportJSON
				*dest[9].(*time.Time) = created
				return nil
			}}
		},
	}

	run, err := New(db).Get(context.Background(), tr.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run == nil {
		t.Fatal("expected run")
	}
	if run.Trace == nil || run.Trace.RunID != tr.RunID {
		t.Fatalf("trace did not round-trip: %+v", run.Trace)
	}
	step, ok := run.Trace.Step("step_4_chunks_merged", nil)
	if !ok {
		t.Fatal("expected step_4_chunks_merged in restored trace")
	}
	if step.LineCount() != 2 {
		t.Errorf("LineCount = %d, want 2", step.LineCount())
	}
	if run.SummaryReport == nil || run.SummaryReport.FaithfulnessScore != 6 {
		t.Errorf("summary report did not round-trip: %+v", run.SummaryReport)
	}
	if run.ValidationPassed {
		t.Error("ValidationPassed should be false")
	}
}

func TestGetNullPayloadsStayNil(t *testing.T) {
	db := &mockDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &mockRow{scanFunc: func(dest ...any) error {
				*dest[0].(*string) = "20250612_093000"
				return nil
			}}
		},
	}

	run, err := New(db).Get(context.Background(), "20250612_093000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Trace != nil {
		t.Errorf("expected nil trace, got %+v", run.Trace)
	}
	if run.SummaryReport != nil {
		t.Errorf("expected nil summary report, got %+v", run.SummaryReport)
	}
}

func TestListDefaultsLimit(t *testing.T) {
	created := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	var gotArgs []any
	db := &mockDB{
		queryFunc: func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotArgs = args
			return &mockRows{rows: [][]any{
				{"20250612_093000", "a.wav", 10.0, 2, true, created},
				{"20250611_120000", "b.wav", 5.0, 1, false, created.Add(-time.Hour)},
			}}, nil
		},
	}

	runs, err := New(db).List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(gotArgs) != 1 || gotArgs[0] != defaultListLimit {
		t.Errorf("expected default limit %d, got args %v", defaultListLimit, gotArgs)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "20250612_093000" || runs[1].ValidationPassed {
		t.Errorf("unexpected listing: %+v", runs)
	}
}

func TestDeleteMissingRunErrors(t *testing.T) {
	db := &mockDB{
		execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 0"), nil
		},
	}

	err := New(db).Delete(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for missing run")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDeleteExistingRun(t *testing.T) {
	db := &mockDB{
		execFunc: func(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("DELETE 1"), nil
		},
	}

	if err := New(db).Delete(context.Background(), "20250612_093000"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
