package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the scan history database at path
// and ensures the schema exists.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := checkLocalFilesystem(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer per run; a single connection keeps pragmas in effect.
	db.SetMaxOpenConns(1)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(pctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables and indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
  id           TEXT PRIMARY KEY,
  parent_dir   TEXT NOT NULL,
  clean        INTEGER NOT NULL,
  max_count    INTEGER NOT NULL,
  max_packs    INTEGER NOT NULL,
  started_at   TEXT NOT NULL,
  finished_at  TEXT,
  workspaces   INTEGER NOT NULL DEFAULT 0,
  dirty        INTEGER NOT NULL DEFAULT 0,
  reset        INTEGER NOT NULL DEFAULT 0
);`,
		`CREATE TABLE IF NOT EXISTS workspace_checks (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id         TEXT NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
  workspace      TEXT NOT NULL,
  count          INTEGER NOT NULL,
  packs          INTEGER NOT NULL,
  size_pack_kib  INTEGER NOT NULL DEFAULT 0,
  dirty          INTEGER NOT NULL,
  reset          INTEGER NOT NULL DEFAULT 0,
  clone_error    TEXT,
  output_digest  TEXT NOT NULL,
  checked_at     TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS workspace_checks_workspace_checked_at_idx ON workspace_checks(workspace, checked_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
