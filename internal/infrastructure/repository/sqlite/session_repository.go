package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

// SessionRepository is the single-node session store: one file, one
// connection.
type SessionRepository struct {
	db       *sql.DB
	maxTurns int
}

func OpenDB(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

func NewSessionRepository(db *sql.DB, maxTurns int) *SessionRepository {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMaxSessionTurns
	}
	return &SessionRepository{db: db, maxTurns: maxTurns}
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS session_turns (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_turns_session ON session_turns(session_id, seq);
`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}

func (r *SessionRepository) Snapshot(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content FROM (
	SELECT seq, role, content FROM session_turns
	WHERE session_id = ?
	ORDER BY seq DESC
	LIMIT ?
) ORDER BY seq ASC
`, sessionID, r.maxTurns)
	if err != nil {
		return nil, fmt.Errorf("list session turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, r.maxTurns)
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("scan session turn: %w", err)
		}
		out = append(out, domain.ConversationTurn{Role: domain.Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session turns: %w", err)
	}
	return out, nil
}

func (r *SessionRepository) AppendExchange(ctx context.Context, sessionID, question, answer string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO session_turns (session_id, role, content, created_at) VALUES (?, ?, ?, ?), (?, ?, ?, ?)
`, sessionID, string(domain.RoleHuman), question, now, sessionID, string(domain.RoleAssistant), answer, now); err != nil {
		return fmt.Errorf("append session turns: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM session_turns
WHERE session_id = ? AND seq NOT IN (
	SELECT seq FROM session_turns WHERE session_id = ? ORDER BY seq DESC LIMIT ?
)
`, sessionID, sessionID, r.maxTurns); err != nil {
		return fmt.Errorf("trim session turns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Reset(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

func (r *SessionRepository) PurgeIdle(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-idle).UnixMilli()
	res, err := r.db.ExecContext(ctx, `
DELETE FROM session_turns
WHERE session_id IN (
	SELECT session_id FROM session_turns GROUP BY session_id HAVING MAX(created_at) < ?
)
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge idle sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge idle sessions rows: %w", err)
	}
	return int(n), nil
}
