//go:build sqlite

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteHistory stores epoch entries in an SQLite database, one row per
// (run, epoch).
type SQLiteHistory struct {
	mu sync.RWMutex
	db *sql.DB
}

func newSQLiteHistory(ctx context.Context, path string) (History, error) {
	return OpenSQLiteHistory(ctx, path)
}

// OpenSQLiteHistory opens (or creates) the database at path.
func OpenSQLiteHistory(ctx context.Context, path string) (*SQLiteHistory, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS epochs (
			run_id TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			best_fitness REAL NOT NULL,
			mean_fitness REAL NOT NULL,
			std_dev REAL NOT NULL,
			evaluations INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			improved INTEGER NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, epoch)
		);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create epochs table: %w", err)
	}

	return &SQLiteHistory{db: db}, nil
}

func (h *SQLiteHistory) Append(ctx context.Context, runID string, e TraceEntry) error {
	db, err := h.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO epochs (run_id, epoch, best_fitness, mean_fitness, std_dev, evaluations, elapsed_ms, improved, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, epoch) DO UPDATE SET
			best_fitness = excluded.best_fitness,
			mean_fitness = excluded.mean_fitness,
			std_dev = excluded.std_dev,
			evaluations = excluded.evaluations,
			elapsed_ms = excluded.elapsed_ms,
			improved = excluded.improved,
			recorded_at = excluded.recorded_at
	`, runID, e.Epoch, e.BestFitness, e.MeanFitness, e.StdDev, e.Evaluations, e.ElapsedMS, e.Improved, e.Timestamp.UTC().Format(time.RFC3339Nano))
	return err
}

func (h *SQLiteHistory) Entries(ctx context.Context, runID string) ([]TraceEntry, error) {
	db, err := h.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT epoch, best_fitness, mean_fitness, std_dev, evaluations, elapsed_ms, improved, recorded_at
		FROM epochs WHERE run_id = ? ORDER BY epoch
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TraceEntry
	for rows.Next() {
		var (
			e  TraceEntry
			ts string
		)
		if err := rows.Scan(&e.Epoch, &e.BestFitness, &e.MeanFitness, &e.StdDev, &e.Evaluations, &e.ElapsedMS, &e.Improved, &ts); err != nil {
			return nil, err
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp of epoch %d: %w", e.Epoch, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (h *SQLiteHistory) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}

func (h *SQLiteHistory) getDB() (*sql.DB, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.db == nil {
		return nil, errors.New("history is closed")
	}
	return h.db, nil
}
