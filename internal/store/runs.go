package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one archived scenario execution.
type Run struct {
	ID           string    `json:"id"`
	Scenario     string    `json:"scenario"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   int64     `json:"duration_ms"`
	Pass         bool      `json:"pass"`
	RawOutput    string    `json:"-"`
	EventJSON    []byte    `json:"-"`
	EnvelopeJSON []byte    `json:"-"`
}

// NewRunID generates a time-sortable UUIDv7 run identifier.
// Sortability keeps ListRuns output in execution order for free.
//
// Panics if UUID generation fails (should never happen in practice).
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SaveRun archives a run record. The caller provides the ID (NewRunID).
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, started_at, duration_ms, pass, raw_output, event_json, envelope_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Scenario,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.DurationMS,
		boolToInt(run.Pass),
		run.RawOutput,
		nullableBytes(run.EventJSON),
		nullableBytes(run.EnvelopeJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun loads one archived run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, started_at, duration_ms, pass, raw_output, event_json, envelope_json
		FROM runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns all archived runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, started_at, duration_ms, pass, raw_output, event_json, envelope_json
		FROM runs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt string
	var pass int
	var eventJSON, envelopeJSON sql.NullString

	err := row.Scan(&run.ID, &run.Scenario, &startedAt, &run.DurationMS, &pass, &run.RawOutput, &eventJSON, &envelopeJSON)
	if err != nil {
		return nil, err
	}

	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	run.Pass = pass != 0
	if eventJSON.Valid {
		run.EventJSON = []byte(eventJSON.String)
	}
	if envelopeJSON.Valid {
		run.EnvelopeJSON = []byte(envelopeJSON.String)
	}
	return &run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
