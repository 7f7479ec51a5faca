package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ja7ad/joules/pkg/measure"

	// sqlite driver
	_ "modernc.org/sqlite"
)

// SQLite keeps Results in a single database file. Summary columns are
// queryable; the full Result, series included, is kept as JSON.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ measure.Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: connect database: %w", err)
	}

	s := &SQLite{db: db, path: path}
	if err := s.configure(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.createSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) configure(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	const query = `
	CREATE TABLE IF NOT EXISTS results (
		instance_id TEXT PRIMARY KEY,
		sensor TEXT NOT NULL,
		command TEXT NOT NULL,
		outcome TEXT NOT NULL,
		mean_energy_j REAL NOT NULL,
		half_width_j REAL NOT NULL,
		round_count INTEGER NOT NULL,
		finished_at TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_finished ON results(finished_at);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return nil
}

func (s *SQLite) Exists(ctx context.Context, instanceID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM results WHERE instance_id = ?`, instanceID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: exists: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) Load(ctx context.Context, instanceID string) (*measure.Result, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM results WHERE instance_id = ?`, instanceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	var r measure.Result
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", instanceID, err)
	}
	return &r, nil
}

func (s *SQLite) Write(ctx context.Context, r *measure.Result) error {
	if r.InstanceID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO results (instance_id, sensor, command, outcome, mean_energy_j,
			half_width_j, round_count, finished_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO NOTHING`,
		r.InstanceID, r.Sensor, r.Command, string(r.Outcome), r.MeanEnergy,
		r.HalfWidth, r.RoundCount, r.FinishedAt.UTC().Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: insert: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, r.InstanceID)
	}
	return nil
}

// List returns the stored instance IDs, most recently finished first.
func (s *SQLite) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT instance_id FROM results ORDER BY finished_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
