// Package history stores locally watched runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"buildwatch/internal/adapter/history/migrations"
	"buildwatch/internal/domain"
)

// DefaultListLimit caps List when the filter names no limit.
const DefaultListLimit = 50

// SQLiteRunStore implements domain.RunStore using SQLite.
type SQLiteRunStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.RunStore = (*SQLiteRunStore)(nil)

// NewSQLiteRunStore opens (or creates) the database at dbPath and applies
// the schema migrations.
func NewSQLiteRunStore(dbPath string, logger *slog.Logger) (*SQLiteRunStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("history db path: %w", domain.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create history db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	db.SetMaxOpenConns(1)

	migrator, err := migrations.NewMigrator(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	logger.Debug("history store opened", "path", dbPath)
	return &SQLiteRunStore{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteRunStore) Insert(ctx context.Context, run domain.Run) error {
	if run.ID == "" {
		return fmt.Errorf("insert run: id is required: %w", domain.ErrInvalidInput)
	}
	if run.Outcome == "" {
		run.Outcome = domain.OutcomePending
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, task_id, project_id, tag, started_at, finished_at, outcome, lines, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TaskID, run.ProjectID, run.Tag,
		run.StartedAt.UnixNano(), unixNanoPtr(run.FinishedAt),
		string(run.Outcome), run.Lines, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Finish finalizes the most recent pending run of taskID.
func (s *SQLiteRunStore) Finish(ctx context.Context, taskID string, outcome domain.RunOutcome, lines int, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET outcome = ?, lines = ?, finished_at = ?
		 WHERE id = (
			SELECT id FROM runs WHERE task_id = ? AND outcome = ?
			ORDER BY started_at DESC LIMIT 1
		 )`,
		string(outcome), lines, at.UnixNano(), taskID, string(domain.OutcomePending),
	)
	if err != nil {
		return fmt.Errorf("finish run for task %s: %w", taskID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("pending run for task %s: %w", taskID, domain.ErrNotFound)
	}
	return nil
}

// List returns runs newest first.
func (s *SQLiteRunStore) List(ctx context.Context, filter domain.RunFilter) ([]domain.Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := "SELECT id, task_id, project_id, tag, started_at, finished_at, outcome, lines, error FROM runs"
	args := []any{}
	if filter.ProjectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, filter.ProjectID)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(rows *sql.Rows) (domain.Run, error) {
	var (
		run        domain.Run
		startedAt  int64
		finishedAt sql.NullInt64
		outcome    string
	)
	if err := rows.Scan(&run.ID, &run.TaskID, &run.ProjectID, &run.Tag,
		&startedAt, &finishedAt, &outcome, &run.Lines, &run.Error); err != nil {
		return domain.Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		t := time.Unix(0, finishedAt.Int64)
		run.FinishedAt = &t
	}
	run.Outcome = domain.RunOutcome(outcome)
	return run, nil
}

func unixNanoPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
