package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"chatbot/internal/logging"
	"chatbot/internal/types"
)

// sqliteStore implements Store on a local SQLite file.
type sqliteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	now    func() time.Time
}

func newSQLiteStore(path string, now func() time.Time) (*sqliteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "newSQLiteStore")
	defer timer.Stop()

	logging.Store("Initializing sqlite store at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &sqliteStore{db: db, dbPath: path, now: now}
	if err := s.initialize(); err != nil {
		logging.StoreError("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	return s, nil
}

// initialize creates the required tables.
func (s *sqliteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		context_json TEXT NOT NULL,
		user_turns INTEGER NOT NULL,
		stage TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS session_turns (
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		user_input TEXT NOT NULL,
		response_json TEXT NOT NULL,
		intent TEXT,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, turn_number)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *sqliteStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	now := s.now()
	c := rec.Context

	if rec.Version == 0 {
		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO sessions (session_id, context_json, user_turns, stage, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 1, ?, ?)`,
			c.SessionID, string(payload), c.UserTurns, string(c.ConversationStage), now.UnixNano(), now.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrVersionConflict
		}
		rec.Version = 1
		rec.CreatedAt = now
		rec.UpdatedAt = now
		logging.StoreDebug("Created session %s", c.SessionID)
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET context_json = ?, user_turns = ?, stage = ?, version = version + 1, updated_at = ?
		 WHERE session_id = ? AND version = ?`,
		string(payload), c.UserTurns, string(c.ConversationStage), now.UnixNano(), c.SessionID, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE session_id = ?", c.SessionID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return ErrVersionConflict
	}

	var created int64
	if err := s.db.QueryRowContext(ctx, "SELECT created_at FROM sessions WHERE session_id = ?", c.SessionID).Scan(&created); err == nil {
		rec.CreatedAt = time.Unix(0, created)
	}
	rec.Version++
	rec.UpdatedAt = now
	logging.StoreDebug("Updated session %s to version %d", c.SessionID, rec.Version)
	return nil
}

// Load implements Store.
func (s *sqliteStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		payload            string
		version            int64
		created, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT context_json, version, created_at, updated_at FROM sessions WHERE session_id = ?",
		sessionID,
	).Scan(&payload, &version, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	rec := &Record{Version: version, CreatedAt: time.Unix(0, created), UpdatedAt: time.Unix(0, updatedAt)}
	if err := json.Unmarshal([]byte(payload), &rec.Context); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return rec, nil
}

// Delete implements Store.
func (s *sqliteStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM session_turns WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return tx.Commit()
}

// List implements Store.
func (s *sqliteStore) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, user_turns, stage, updated_at FROM sessions ORDER BY updated_at DESC, session_id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum     Summary
			stage   string
			updated int64
		)
		if err := rows.Scan(&sum.SessionID, &sum.UserTurns, &stage, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.Stage = types.Stage(stage)
		sum.UpdatedAt = time.Unix(0, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// AppendTurn implements Store.
// Uses INSERT OR IGNORE so re-syncing a turn is a no-op.
func (s *sqliteStore) AppendTurn(ctx context.Context, turn TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(turn.Response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	created := turn.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO session_turns (session_id, turn_number, user_input, response_json, intent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		turn.SessionID, turn.Turn, turn.User, string(payload), string(turn.Response.Intent), created.UnixNano(),
	)
	if err != nil {
		logging.StoreError("Failed to store turn %d for %s: %v", turn.Turn, turn.SessionID, err)
		return fmt.Errorf("failed to store turn: %w", err)
	}
	return nil
}

// Turns implements Store.
func (s *sqliteStore) Turns(ctx context.Context, sessionID string) ([]TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_number, user_input, response_json, created_at FROM session_turns
		 WHERE session_id = ? ORDER BY turn_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	out := []TurnRecord{}
	for rows.Next() {
		var (
			t       = TurnRecord{SessionID: sessionID}
			payload string
			created int64
		)
		if err := rows.Scan(&t.Turn, &t.User, &payload, &created); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &t.Response); err != nil {
			return nil, fmt.Errorf("failed to decode turn %d: %w", t.Turn, err)
		}
		t.CreatedAt = time.Unix(0, created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logging.StoreDebug("Closing sqlite store %s", s.dbPath)
	return s.db.Close()
}
