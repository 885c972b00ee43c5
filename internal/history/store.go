// Package history keeps a SQLite record of pipeline runs.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"xlsconv/internal/logging"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Status of a run.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Run is one pipeline execution.
type Run struct {
	ID          string
	Input       string
	OrderID     string
	Status      Status
	StartedAt   time.Time
	FinishedAt  time.Time
	QuantityIn  int
	QuantityOut int
	ResultDir   string
	Files       []string
	Error       string
}

// Duration returns how long the run took, zero while running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store manages the history database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore creates or opens the history database at path.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{
		db:     db,
		dbPath: path,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.History("History database opened: %s", path)
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		order_id TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		quantity_in INTEGER NOT NULL DEFAULT 0,
		quantity_out INTEGER NOT NULL DEFAULT 0,
		result_dir TEXT,
		files_json TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_order ON runs(order_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record inserts or updates a run. A missing ID is generated.
func (s *Store) Record(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = StatusRunning
	}

	filesJSON, err := json.Marshal(r.Files)
	if err != nil {
		return fmt.Errorf("failed to encode files: %w", err)
	}

	var finished sql.NullInt64
	if !r.FinishedAt.IsZero() {
		finished = sql.NullInt64{Int64: r.FinishedAt.UnixMilli(), Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, input, order_id, status, started_at, finished_at,
			quantity_in, quantity_out, result_dir, files_json, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			input = excluded.input,
			order_id = excluded.order_id,
			status = excluded.status,
			finished_at = excluded.finished_at,
			quantity_in = excluded.quantity_in,
			quantity_out = excluded.quantity_out,
			result_dir = excluded.result_dir,
			files_json = excluded.files_json,
			error = excluded.error
	`, r.ID, r.Input, r.OrderID, string(r.Status), r.StartedAt.UnixMilli(), finished,
		r.QuantityIn, r.QuantityOut, r.ResultDir, string(filesJSON), r.Error)
	if err != nil {
		logging.HistoryError("Failed to record run %s: %v", r.ID, err)
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

const selectRun = `
	SELECT id, input, order_id, status, started_at, finished_at,
		quantity_in, quantity_out, result_dir, files_json, error
	FROM runs`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                  Run
		status             string
		started            int64
		finished           sql.NullInt64
		resultDir, errText sql.NullString
		filesJSON          sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Input, &r.OrderID, &status, &started, &finished,
		&r.QuantityIn, &r.QuantityOut, &resultDir, &filesJSON, &errText); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.StartedAt = time.UnixMilli(started)
	if finished.Valid {
		r.FinishedAt = time.UnixMilli(finished.Int64)
	}
	r.ResultDir = resultDir.String
	r.Error = errText.String
	if filesJSON.Valid && filesJSON.String != "" {
		json.Unmarshal([]byte(filesJSON.String), &r.Files)
	}
	return &r, nil
}

// Get returns the run with the given id.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := scanRun(s.db.QueryRow(selectRun+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return r, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(selectRun+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
