package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Session is the database representation of a member session.
type Session struct {
	ID        uuid.UUID
	MemberID  uuid.UUID
	TokenHash string
	ExpiresAt sql.NullTime
	CreatedAt sql.NullTime
}

const getSessionByTokenHash = `
SELECT id, member_id, token_hash, expires_at, created_at
FROM sessions
WHERE token_hash = $1
`

func (q *Queries) GetSessionByTokenHash(ctx context.Context, tokenHash string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSessionByTokenHash, tokenHash)
	var s Session
	err := row.Scan(&s.ID, &s.MemberID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt)
	return s, err
}

const deleteSession = `
DELETE FROM sessions
WHERE id = $1
`

func (q *Queries) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, deleteSession, id)
	return err
}
