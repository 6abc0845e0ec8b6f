// Package audit persists run history locally so executed deletions can be
// reviewed after the fact.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MacJediWizard/shotsweep/internal/deletion"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Store records deletion runs in a local SQLite database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the run-history database in the given
// config directory.
func Open(configDir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	dbPath := filepath.Join(configDir, "history.db")

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{
		db:     db,
		logger: logger.With().Str("component", "audit_store").Logger(),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	store.logger.Debug().Str("path", dbPath).Msg("history database opened")
	return store, nil
}

// migrate creates the necessary tables.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mode TEXT NOT NULL,
			dry_run INTEGER NOT NULL DEFAULT 0,
			versions_deleted INTEGER NOT NULL DEFAULT 0,
			components_deleted INTEGER NOT NULL DEFAULT 0,
			bytes_deleted INTEGER NOT NULL DEFAULT 0,
			failures TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Run is one recorded deletion run.
type Run struct {
	ID                int64
	Mode              string
	DryRun            bool
	VersionsDeleted   int
	ComponentsDeleted int
	BytesDeleted      int64
	Failures          []deletion.Failure
	CreatedAt         time.Time
}

// RecordRun persists one run's summary.
func (s *Store) RecordRun(ctx context.Context, mode string, dryRun bool, summary deletion.Summary) error {
	failures, err := json.Marshal(summary.Failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (mode, dry_run, versions_deleted, components_deleted, bytes_deleted, failures, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mode,
		boolToInt(dryRun),
		summary.VersionsDeleted,
		summary.ComponentsDeleted,
		summary.BytesDeleted,
		string(failures),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	s.logger.Debug().Str("mode", mode).Bool("dry_run", dryRun).Msg("run recorded")
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, dry_run, versions_deleted, components_deleted, bytes_deleted, failures, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var dryRun int
		var failures sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Mode, &dryRun, &r.VersionsDeleted, &r.ComponentsDeleted, &r.BytesDeleted, &failures, &createdAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.DryRun = dryRun != 0
		if failures.Valid && failures.String != "" {
			if err := json.Unmarshal([]byte(failures.String), &r.Failures); err != nil {
				s.logger.Warn().Int64("run_id", r.ID).Err(err).Msg("corrupt failure payload")
			}
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
