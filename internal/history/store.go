// Package history persists per-run build outcomes to SQLite so operators can
// answer "what happened to run X" after the process has exited. It stores
// outcomes only, never parameters or secrets.
package history

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// RunRecord is one completed orchestrator run.
type RunRecord struct {
	ID              int64
	CorrelationID   string
	Result          string
	RestoreSkipped  bool
	RestoreDuration *time.Duration
	BuildDuration   *time.Duration
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Store records run outcomes in SQLite.
// Use ":memory:" for an in-memory database, or a file path for persistence.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "open sqlite database").
			WithContext("path", dbPath).
			Build()
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "initialize schema").Build()
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		correlation_id TEXT NOT NULL,
		result TEXT NOT NULL,
		restore_skipped INTEGER NOT NULL,
		restore_ms INTEGER,
		build_ms INTEGER,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_correlation_id ON runs(correlation_id);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends a completed run.
func (s *Store) Record(ctx context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (correlation_id, result, restore_skipped, restore_ms, build_ms, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.CorrelationID, rec.Result, boolToInt(rec.RestoreSkipped),
		durationMS(rec.RestoreDuration), durationMS(rec.BuildDuration),
		rec.StartedAt.Unix(), rec.FinishedAt.Unix(),
	)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryHistory, "insert run record").Build()
	}
	return nil
}

// ByCorrelationID retrieves all runs for a correlation id, oldest first.
func (s *Store) ByCorrelationID(ctx context.Context, correlationID string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, correlation_id, result, restore_skipped, restore_ms, build_ms, started_at, finished_at FROM runs WHERE correlation_id = ? ORDER BY id",
		correlationID,
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "query runs").Build()
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Range retrieves runs started within [start, end], oldest first.
func (s *Store) Range(ctx context.Context, start, end time.Time) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, correlation_id, result, restore_skipped, restore_ms, build_ms, started_at, finished_at FROM runs WHERE started_at >= ? AND started_at <= ? ORDER BY id",
		start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "query runs").Build()
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]RunRecord, error) {
	var records []RunRecord
	for rows.Next() {
		var (
			rec                   RunRecord
			skipped               int
			restoreMS, buildMS    sql.NullInt64
			startedAt, finishedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.CorrelationID, &rec.Result, &skipped, &restoreMS, &buildMS, &startedAt, &finishedAt); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "scan run record").Build()
		}
		rec.RestoreSkipped = skipped != 0
		rec.RestoreDuration = msDuration(restoreMS)
		rec.BuildDuration = msDuration(buildMS)
		rec.StartedAt = time.Unix(startedAt, 0)
		rec.FinishedAt = time.Unix(finishedAt, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "iterate rows").Build()
	}
	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func durationMS(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return d.Milliseconds()
}

func msDuration(v sql.NullInt64) *time.Duration {
	if !v.Valid {
		return nil
	}
	d := time.Duration(v.Int64) * time.Millisecond
	return &d
}
