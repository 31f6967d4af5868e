// Package history persists scan results so later runs can report how a
// workspace's object count moved since it was last checked.
package history

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Run is one invocation of the scanner.
type Run struct {
	ID         string
	ParentDir  string
	Clean      bool
	MaxCount   int64
	MaxPacks   int64
	StartedAt  time.Time
	FinishedAt time.Time
	Workspaces int
	Dirty      int
	Reset      int
}

// Record is the outcome of checking one workspace within a run.
type Record struct {
	RunID        string
	Workspace    string
	Count        int64
	Packs        int64
	SizePackKiB  int64
	Dirty        bool
	Reset        bool
	CloneError   string
	OutputDigest string
	CheckedAt    time.Time
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// NewRunID returns a fresh identifier for a scan run.
func NewRunID() string {
	return uuid.NewString()
}

// Digest fingerprints raw `git count-objects -v` output.
func Digest(output string) string {
	sum := blake3.Sum256([]byte(output))
	return hex.EncodeToString(sum[:])
}

// BeginRun inserts a run row. StartedAt defaults to now.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is empty")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO scan_runs(id, parent_dir, clean, max_count, max_packs, started_at)
VALUES(?, ?, ?, ?, ?, ?);
`, run.ID, run.ParentDir, boolInt(run.Clean), run.MaxCount, run.MaxPacks, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	return nil
}

// FinishRun stores the run totals.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE scan_runs
SET finished_at = ?, workspaces = ?, dirty = ?, reset = ?
WHERE id = ?;
`, formatTime(run.FinishedAt), run.Workspaces, run.Dirty, run.Reset, run.ID)
	if err != nil {
		return fmt.Errorf("update scan run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scan run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("scan run %q not found", run.ID)
	}
	return nil
}

// RecordCheck appends a workspace check to its run.
func (s *Store) RecordCheck(ctx context.Context, rec Record) error {
	if rec.RunID == "" || rec.Workspace == "" {
		return fmt.Errorf("record needs run id and workspace")
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = s.now()
	}

	var cloneErr sql.NullString
	if rec.CloneError != "" {
		cloneErr = sql.NullString{String: rec.CloneError, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO workspace_checks(run_id, workspace, count, packs, size_pack_kib, dirty, reset, clone_error, output_digest, checked_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, rec.RunID, rec.Workspace, rec.Count, rec.Packs, rec.SizePackKiB,
		boolInt(rec.Dirty), boolInt(rec.Reset), cloneErr, rec.OutputDigest, formatTime(rec.CheckedAt))
	if err != nil {
		return fmt.Errorf("insert workspace check: %w", err)
	}
	return nil
}

// Last returns the most recent check recorded for workspace.
func (s *Store) Last(ctx context.Context, workspace string) (Record, bool, error) {
	recs, err := s.Recent(ctx, workspace, 1)
	if err != nil {
		return Record{}, false, err
	}
	if len(recs) == 0 {
		return Record{}, false, nil
	}
	return recs[0], true, nil
}

// Recent returns up to limit checks for workspace, newest first.
func (s *Store) Recent(ctx context.Context, workspace string, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, workspace, count, packs, size_pack_kib, dirty, reset, clone_error, output_digest, checked_at
FROM workspace_checks
WHERE workspace = ?
ORDER BY id DESC
LIMIT ?;
`, workspace, limit)
	if err != nil {
		return nil, fmt.Errorf("query workspace checks: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			dirty     int
			reset     int
			cloneErr  sql.NullString
			checkedAt string
		)
		if err := rows.Scan(&rec.RunID, &rec.Workspace, &rec.Count, &rec.Packs, &rec.SizePackKiB,
			&dirty, &reset, &cloneErr, &rec.OutputDigest, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan workspace check: %w", err)
		}
		rec.Dirty = dirty != 0
		rec.Reset = reset != 0
		rec.CloneError = cloneErr.String
		rec.CheckedAt, err = time.Parse(time.RFC3339Nano, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("parse checked_at %q: %w", checkedAt, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspace checks: %w", err)
	}
	return out, nil
}

// GetRun loads a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		run        Run
		clean      int
		startedAt  string
		finishedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, parent_dir, clean, max_count, max_packs, started_at, finished_at, workspaces, dirty, reset
FROM scan_runs WHERE id = ?;
`, id).Scan(&run.ID, &run.ParentDir, &clean, &run.MaxCount, &run.MaxPacks,
		&startedAt, &finishedAt, &run.Workspaces, &run.Dirty, &run.Reset)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("scan run %q not found", id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read scan run: %w", err)
	}

	run.Clean = clean != 0
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt.String); err != nil {
			return Run{}, fmt.Errorf("parse finished_at %q: %w", finishedAt.String, err)
		}
	}
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
