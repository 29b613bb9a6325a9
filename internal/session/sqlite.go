package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists sessions so a restart does not drop mid-conversation
// context. It is per-instance durability, not shared state.
type SQLiteStore struct {
	db   *sql.DB
	opts Options
}

func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite pragmas: %w", err)
	}
	store := &SQLiteStore{db: db, opts: opts.withDefaults()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS session_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_session_turns_session ON session_turns(session_id, id);`)
	if err != nil {
		return fmt.Errorf("migrate sessions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	cutoff := time.Now().UTC().Add(-s.opts.Timeout).Format("2006-01-02 15:04:05")
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM session_turns
		 WHERE session_id = ? AND created_at >= ?
		 ORDER BY id`, sessionID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("scan session turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return Tail(turns, s.opts.MaxTurns), nil
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append session %s: %w", sessionID, err)
	}
	defer tx.Rollback()

	for _, turn := range turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_turns (session_id, role, content) VALUES (?, ?, ?)`,
			sessionID, turn.Role, turn.Content); err != nil {
			return fmt.Errorf("append session %s: %w", sessionID, err)
		}
	}
	// Trim anything beyond the retention cap.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_turns WHERE session_id = ? AND id NOT IN (
			SELECT id FROM session_turns WHERE session_id = ? ORDER BY id DESC LIMIT ?
		)`, sessionID, sessionID, s.opts.MaxTurns); err != nil {
		return fmt.Errorf("trim session %s: %w", sessionID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

// PruneIdle deletes turns older than the timeout across all sessions.
func (s *SQLiteStore) PruneIdle(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.opts.Timeout).Format("2006-01-02 15:04:05")
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM session_turns WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
