package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/collabhub/matching/internal/models"
)

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" keeps the ledger in memory.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every pooled connection to :memory: would get its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		item_type TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		candidates INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		indexed INTEGER NOT NULL DEFAULT 0,
		mapping_failures INTEGER NOT NULL DEFAULT 0,
		item_failures INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sync_runs_type_started ON sync_runs(item_type, started_at);

	CREATE TABLE IF NOT EXISTS sync_failed_batches (
		run_id TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		PRIMARY KEY (run_id, ordinal),
		FOREIGN KEY (run_id) REFERENCES sync_runs(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordRun inserts or replaces a run together with its failed batches.
func (s *SQLiteLedger) RecordRun(ctx context.Context, run *models.SyncRun) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("sync run has empty id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sync_failed_batches WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_runs
		 (id, item_type, status, started_at, finished_at, candidates, skipped, indexed, mapping_failures, item_failures, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.ItemType), string(run.Status), run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Candidates, run.Skipped, run.Indexed, run.MappingFailures, run.ItemFailures, run.Error,
	)
	if err != nil {
		return err
	}

	if len(run.FailedBatches) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO sync_failed_batches (run_id, ordinal) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, ordinal := range run.FailedBatches {
			if _, err := stmt.ExecContext(ctx, run.ID, ordinal); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

const runColumns = `id, item_type, status, started_at, finished_at, candidates, skipped, indexed, mapping_failures, item_failures, error`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		run      models.SyncRun
		itemType string
		status   string
		errText  sql.NullString
	)
	err := row.Scan(&run.ID, &itemType, &status, &run.StartedAt, &run.FinishedAt,
		&run.Candidates, &run.Skipped, &run.Indexed, &run.MappingFailures, &run.ItemFailures, &errText)
	if err != nil {
		return nil, err
	}
	run.ItemType = models.ItemType(itemType)
	run.Status = models.SyncStatus(status)
	run.Error = errText.String
	return &run, nil
}

// GetRun returns a run by id with its failed batches.
func (s *SQLiteLedger) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM sync_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if run.FailedBatches, err = s.failedBatches(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *SQLiteLedger) ListRuns(ctx context.Context, itemType models.ItemType, limit int) ([]*models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + runColumns + ` FROM sync_runs`
	args := []interface{}{}
	if itemType != "" {
		q += ` WHERE item_type = ?`
		args = append(args, string(itemType))
	}
	q += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for _, run := range runs {
		if run.FailedBatches, err = s.failedBatches(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// LastRun returns the newest run of itemType, or ErrRunNotFound.
func (s *SQLiteLedger) LastRun(ctx context.Context, itemType models.ItemType) (*models.SyncRun, error) {
	runs, err := s.ListRuns(ctx, itemType, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs for %s", ErrRunNotFound, itemType)
	}
	return runs[0], nil
}

func (s *SQLiteLedger) failedBatches(ctx context.Context, runID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ordinal FROM sync_failed_batches WHERE run_id = ? ORDER BY ordinal`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ordinals []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		ordinals = append(ordinals, n)
	}
	return ordinals, rows.Err()
}

// CountRuns returns the total number of recorded runs.
func (s *SQLiteLedger) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_runs`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
