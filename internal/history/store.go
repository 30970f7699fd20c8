// Package history persists finished resolution sessions to a local
// SQLite database so operators can answer "what changed since it last
// worked" without trawling logs.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session id has no row.
var ErrNotFound = errors.New("session not found")

// defaultListLimit caps listings when the caller does not.
const defaultListLimit = 20

// SessionRow is the persisted form of one session.
type SessionRow struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Manifest   map[string][]string
	RecipePath string
	Trials     []TrialRow
}

// TrialRow is the persisted form of one trial, ordered by Seq.
type TrialRow struct {
	Seq        int
	Strategy   string
	Success    bool
	Duration   time.Duration
	LogSnippet string
}

// Store is the SQLite-backed session archive.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open initializes the database at path, creating parent directories
// and the schema on first use. A single connection with WAL journaling
// keeps concurrent CLI invocations from tripping over each other.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma not applied", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	store := &Store{db: db, logger: logger}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		manifest_json TEXT,
		recipe_path TEXT
	);
	CREATE TABLE IF NOT EXISTS trials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		strategy TEXT NOT NULL,
		success INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		log_snippet TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(id)
	);
	CREATE INDEX IF NOT EXISTS idx_trials_session ON trials(session_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession writes the session and its trials in one transaction.
// Saving the same id again replaces the previous record.
func (s *Store) SaveSession(row SessionRow) error {
	manifestJSON, err := json.Marshal(row.Manifest)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO sessions (id, started_at, finished_at, status, manifest_json, recipe_path)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.StartedAt.UTC().Format(time.RFC3339Nano),
		row.FinishedAt.UTC().Format(time.RFC3339Nano),
		row.Status,
		string(manifestJSON),
		row.RecipePath,
	); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM trials WHERE session_id = ?`, row.ID); err != nil {
		return fmt.Errorf("clearing trials: %w", err)
	}
	for _, trial := range row.Trials {
		if _, err := tx.Exec(
			`INSERT INTO trials (session_id, seq, strategy, success, duration_ms, log_snippet)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			row.ID, trial.Seq, trial.Strategy, trial.Success,
			trial.Duration.Milliseconds(), trial.LogSnippet,
		); err != nil {
			return fmt.Errorf("inserting trial: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	s.logger.Debug("session persisted",
		zap.String("session_id", row.ID),
		zap.Int("trials", len(row.Trials)))
	return nil
}

// ListSessions returns the newest sessions first, without trials.
// limit <= 0 uses the default.
func (s *Store) ListSessions(limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, status, manifest_json, recipe_path
		 FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		row, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, row)
	}
	return sessions, rows.Err()
}

// GetSession loads one session with its trials in sequence order.
func (s *Store) GetSession(id string) (*SessionRow, error) {
	row, err := scanSession(s.db.QueryRow(
		`SELECT id, started_at, finished_at, status, manifest_json, recipe_path
		 FROM sessions WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	trials, err := s.db.Query(
		`SELECT seq, strategy, success, duration_ms, log_snippet
		 FROM trials WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("loading trials: %w", err)
	}
	defer trials.Close()

	for trials.Next() {
		var trial TrialRow
		var durationMs int64
		if err := trials.Scan(&trial.Seq, &trial.Strategy, &trial.Success, &durationMs, &trial.LogSnippet); err != nil {
			return nil, fmt.Errorf("scanning trial: %w", err)
		}
		trial.Duration = time.Duration(durationMs) * time.Millisecond
		row.Trials = append(row.Trials, trial)
	}
	if err := trials.Err(); err != nil {
		return nil, err
	}
	return &row, nil
}

func scanSession(scan func(dest ...any) error) (SessionRow, error) {
	var row SessionRow
	var startedAt, finishedAt, manifestJSON string
	if err := scan(&row.ID, &startedAt, &finishedAt, &row.Status, &manifestJSON, &row.RecipePath); err != nil {
		return SessionRow{}, err
	}

	var err error
	if row.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return SessionRow{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if row.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return SessionRow{}, fmt.Errorf("parsing finished_at: %w", err)
	}
	if manifestJSON != "" {
		if err := json.Unmarshal([]byte(manifestJSON), &row.Manifest); err != nil {
			return SessionRow{}, fmt.Errorf("parsing manifest: %w", err)
		}
	}
	return row, nil
}
