package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"framectl/internal/config"
	"framectl/internal/services"
)

// StatusRunning marks a call that has started but not finished.
const StatusRunning = "running"

// UnitRecord summarizes one enabled unit of a call.
type UnitRecord struct {
	Index     int     `json:"index"`
	Module    string  `json:"module"`
	Model     string  `json:"model,omitempty"`
	InputMode string  `json:"input_mode"`
	Frames    int     `json:"frames"`
	Weight    float64 `json:"weight"`
}

// Run is one recorded generation call.
type Run struct {
	ID          string
	Status      string
	CreatedAt   time.Time
	FinishedAt  time.Time
	Seed        int64
	Subseed     int64
	BatchSize   int
	VideoLength int
	VideoSource string
	Checkpoint  string
	Units       []UnitRecord
	Frames      int
	Error       string
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the ledger under cfg's state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.RunLogPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records a call as running. CreatedAt defaults to now.
func (s *Store) Begin(ctx context.Context, run *Run) error {
	if run == nil || strings.TrimSpace(run.ID) == "" {
		return services.Wrap(services.ErrValidation, "runlog", "begin", "run id is required", nil)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.Status = StatusRunning
	unitsJSON, err := json.Marshal(run.Units)
	if err != nil {
		return fmt.Errorf("marshal units: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, status, created_at, seed, subseed, batch_size, video_length,
            video_source, checkpoint, units_json
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Status,
		run.CreatedAt.UTC().Format(time.RFC3339Nano),
		run.Seed,
		run.Subseed,
		run.BatchSize,
		run.VideoLength,
		nullableString(run.VideoSource),
		nullableString(run.Checkpoint),
		string(unitsJSON),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Outcome is the final state of a call. Zero VideoLength and BatchSize and a
// nil Units keep the values recorded by Begin.
type Outcome struct {
	Status      string
	Frames      int
	VideoLength int
	BatchSize   int
	Units       []UnitRecord
	Error       string
}

// Finish records the outcome of a call.
func (s *Store) Finish(ctx context.Context, id string, out Outcome) error {
	var units any
	if out.Units != nil {
		data, err := json.Marshal(out.Units)
		if err != nil {
			return fmt.Errorf("marshal units: %w", err)
		}
		units = string(data)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
            status = ?,
            finished_at = ?,
            frames = ?,
            video_length = COALESCE(?, video_length),
            batch_size = COALESCE(?, batch_size),
            units_json = COALESCE(?, units_json),
            error_message = ?
        WHERE id = ?`,
		out.Status,
		time.Now().UTC().Format(time.RFC3339Nano),
		out.Frames,
		nullableInt(out.VideoLength),
		nullableInt(out.BatchSize),
		units,
		nullableString(out.Error),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return services.Wrap(services.ErrNotFound, "runlog", "finish", id, nil)
	}
	return nil
}

const runColumns = "id, status, created_at, finished_at, seed, subseed, batch_size, video_length, video_source, checkpoint, units_json, frames, error_message"

// Get returns a run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "runlog", "get", id, nil)
	}
	return run, err
}

// List returns the most recent runs first, optionally filtered by status. A
// limit of zero or less returns every run.
func (s *Store) List(ctx context.Context, limit int, statuses ...string) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs"
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MarkAbandoned flags runs still marked running as failed. A process that
// dies mid-call leaves such rows behind.
func (s *Store) MarkAbandoned(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error_message = ? WHERE status = ?`,
		services.StatusFailed,
		time.Now().UTC().Format(time.RFC3339Nano),
		"abandoned: process exited before the call finished",
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	return res.RowsAffected()
}
