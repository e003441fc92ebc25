// Package sqlite keeps the local run history of the vmdesk CLI.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"vmdesk.app/internal/core/domain"
	"vmdesk.app/internal/core/ports"
)

var _ ports.RunRepository = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	workflow TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL,
	category TEXT NOT NULL,
	status TEXT NOT NULL,
	artifacts TEXT NOT NULL DEFAULT '',
	cancelled INTEGER NOT NULL DEFAULT 0,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 3,
	started_at TEXT,
	finished_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE TABLE IF NOT EXISTS run_slots (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	slot INTEGER NOT NULL,
	role TEXT NOT NULL,
	status TEXT NOT NULL,
	label TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	output TEXT NOT NULL DEFAULT '',
	started_at TEXT,
	finished_at TEXT,
	PRIMARY KEY (run_id, slot)
);`

// Fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, workflow, kind, prompt, category, status, artifacts, cancelled, retry_count, max_retries, started_at, finished_at, created_at, updated_at"

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps sqlite from reporting SQLITE_BUSY between goroutines.
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(
		ctx,
		"INSERT INTO runs ("+runColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		run.ID,
		string(run.Workflow),
		run.Kind,
		run.Prompt,
		string(run.Category),
		string(run.Status),
		run.Artifacts,
		run.Cancelled,
		run.RetryCount,
		run.MaxRetries,
		formatTimePtr(run.StartedAt),
		formatTimePtr(run.FinishedAt),
		formatTime(run.CreatedAt),
		formatTime(run.UpdatedAt),
	)
	return err
}

func (s *Store) Update(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE runs SET workflow = ?, kind = ?, prompt = ?, category = ?, status = ?, artifacts = ?,
			cancelled = ?, retry_count = ?, max_retries = ?, started_at = ?, finished_at = ?, updated_at = ?
		WHERE id = ?`,
		string(run.Workflow),
		run.Kind,
		run.Prompt,
		string(run.Category),
		string(run.Status),
		run.Artifacts,
		run.Cancelled,
		run.RetryCount,
		run.MaxRetries,
		formatTimePtr(run.StartedAt),
		formatTimePtr(run.FinishedAt),
		formatTime(run.UpdatedAt),
		run.ID,
	)
	return err
}

// GetRun returns nil without error for an unknown id.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Slots, err = s.slots(ctx, id)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *Store) SaveSlot(ctx context.Context, slot *domain.SlotResult) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO run_slots (run_id, slot, role, status, label, error, output, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, slot) DO UPDATE SET
			role = excluded.role, status = excluded.status, label = excluded.label, error = excluded.error,
			output = excluded.output, started_at = excluded.started_at, finished_at = excluded.finished_at`,
		slot.RunID,
		slot.Slot,
		string(slot.Role),
		string(slot.Status),
		slot.Label,
		slot.Error,
		slot.Output,
		formatTimePtr(slot.StartedAt),
		formatTimePtr(slot.FinishedAt),
	)
	return err
}

func (s *Store) DeleteSlots(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM run_slots WHERE run_id = ?", runID)
	return err
}

func (s *Store) ListRuns(ctx context.Context, offset, limit int) ([]*domain.Run, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	return collectRuns(rows)
}

func (s *Store) ListRunsByStatus(ctx context.Context, status domain.RunStatus) ([]*domain.Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs WHERE status = ? ORDER BY created_at DESC, id DESC", string(status))
	if err != nil {
		return nil, err
	}
	return collectRuns(rows)
}

func (s *Store) CountRuns(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) slots(ctx context.Context, runID string) ([]domain.SlotResult, error) {
	rows, err := s.db.QueryContext(
		ctx,
		"SELECT run_id, slot, role, status, label, error, output, started_at, finished_at FROM run_slots WHERE run_id = ? ORDER BY slot",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SlotResult
	for rows.Next() {
		var (
			res               domain.SlotResult
			role, status      string
			started, finished sql.NullString
		)
		if err := rows.Scan(&res.RunID, &res.Slot, &role, &status, &res.Label, &res.Error, &res.Output, &started, &finished); err != nil {
			return nil, err
		}
		res.Role = domain.Role(role)
		res.Status = domain.SlotStatus(status)
		res.StartedAt = parseTimePtr(started)
		res.FinishedAt = parseTimePtr(finished)
		out = append(out, res)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var (
		run                        domain.Run
		workflow, category, status string
		started, finished          sql.NullString
		created, updated           string
	)
	if err := row.Scan(
		&run.ID, &workflow, &run.Kind, &run.Prompt, &category, &status, &run.Artifacts,
		&run.Cancelled, &run.RetryCount, &run.MaxRetries, &started, &finished, &created, &updated,
	); err != nil {
		return nil, err
	}
	run.Workflow = domain.Workflow(workflow)
	run.Category = domain.Category(category)
	run.Status = domain.RunStatus(status)
	run.StartedAt = parseTimePtr(started)
	run.FinishedAt = parseTimePtr(finished)
	run.CreatedAt = parseTime(created)
	run.UpdatedAt = parseTime(updated)
	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*domain.Run, error) {
	defer rows.Close()
	runs := []*domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
