package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder archives run events to a local SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the archive database and runs
// migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so anything poking at the archive doesnt block the writers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			run_id        INTEGER,
			kind          TEXT,
			seed          INTEGER,
			horizon       INTEGER,
			trials        INTEGER,
			status        TEXT,
			estimate      REAL,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_events_ts ON run_events(timestamp)`,

		`CREATE TABLE IF NOT EXISTS convergence_events (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp          INTEGER NOT NULL,
			run_id             INTEGER,
			trials             INTEGER,
			mean               REAL,
			std_error          REAL,
			half_width_95      REAL,
			recommended_trials INTEGER,
			converged          INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_convergence_events_ts ON convergence_events(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(ctx context.Context, event RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO run_events
		(timestamp, run_id, kind, seed, horizon, trials, status, estimate, error_message)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		event.At.Unix(), event.RunId.Ptr(), event.Kind, event.Seed, event.Horizon,
		event.Trials, event.Status, event.Estimate, event.ErrorMessage,
	)
	return err
}

func (r *SQLiteRecorder) RecordConvergence(ctx context.Context, event ConvergenceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO convergence_events
		(timestamp, run_id, trials, mean, std_error, half_width_95, recommended_trials, converged)
		VALUES (?,?,?,?,?,?,?,?)`,
		event.At.Unix(), event.RunId.Ptr(), event.Trials, event.Mean,
		event.StdError, event.HalfWidth95, event.RecommendedTrials, event.Converged,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("closing sqlite recorder")
	return r.db.Close()
}
