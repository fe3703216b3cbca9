package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

// SessionRepository stores the trailing window of turns per session id.
type SessionRepository struct {
	db       *sql.DB
	maxTurns int
}

func NewSessionRepository(db *sql.DB, maxTurns int) *SessionRepository {
	if maxTurns <= 0 {
		maxTurns = domain.DefaultMaxSessionTurns
	}
	return &SessionRepository{db: db, maxTurns: maxTurns}
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/mcp startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101802)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS session_turns (
	seq BIGSERIAL PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_turns_session_seq ON session_turns(session_id, seq DESC);
CREATE INDEX IF NOT EXISTS idx_session_turns_created_at ON session_turns(created_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Snapshot(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content
FROM session_turns
WHERE session_id = $1
ORDER BY seq DESC
LIMIT $2
`, sessionID, r.maxTurns)
	if err != nil {
		return nil, fmt.Errorf("list session turns: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ConversationTurn, 0, r.maxTurns)
	for rows.Next() {
		var turn domain.ConversationTurn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("scan session turn: %w", err)
		}
		out = append(out, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session turns: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AppendExchange inserts the human and assistant turns and trims older rows in
// the same transaction.
func (r *SessionRepository) AppendExchange(ctx context.Context, sessionID, question, answer string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO session_turns (session_id, role, content, created_at)
VALUES ($1, $2, $3, $5), ($1, $4, $6, $5)
`, sessionID, string(domain.RoleHuman), question, string(domain.RoleAssistant), now, answer); err != nil {
		return fmt.Errorf("append session turns: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM session_turns
WHERE session_id = $1 AND seq NOT IN (
	SELECT seq FROM session_turns WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
)
`, sessionID, r.maxTurns); err != nil {
		return fmt.Errorf("trim session turns: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Reset(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

// PurgeIdle drops sessions whose newest turn is older than idle.
func (r *SessionRepository) PurgeIdle(ctx context.Context, idle time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-idle)
	res, err := r.db.ExecContext(ctx, `
DELETE FROM session_turns
WHERE session_id IN (
	SELECT session_id FROM session_turns GROUP BY session_id HAVING MAX(created_at) < $1
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
