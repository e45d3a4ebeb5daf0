package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Subscription is the database representation of a member's subscription.
type Subscription struct {
	ID        uuid.UUID
	MemberID  uuid.UUID
	LevelID   uuid.UUID
	Status    string
	ExpiresAt sql.NullTime
	CreatedAt sql.NullTime
	UpdatedAt sql.NullTime
}

const getSubscriptionByMemberID = `
SELECT id, member_id, level_id, status, expires_at, created_at, updated_at
FROM subscriptions
WHERE member_id = $1
`

func (q *Queries) GetSubscriptionByMemberID(ctx context.Context, memberID uuid.UUID) (Subscription, error) {
	row := q.db.QueryRowContext(ctx, getSubscriptionByMemberID, memberID)
	var s Subscription
	err := row.Scan(&s.ID, &s.MemberID, &s.LevelID, &s.Status, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const updateSubscriptionStatus = `
UPDATE subscriptions
SET status = $2, expires_at = $3, updated_at = now()
WHERE member_id = $1
`

type UpdateSubscriptionStatusParams struct {
	MemberID  uuid.UUID
	Status    string
	ExpiresAt sql.NullTime
}

func (q *Queries) UpdateSubscriptionStatus(ctx context.Context, arg UpdateSubscriptionStatusParams) error {
	_, err := q.db.ExecContext(ctx, updateSubscriptionStatus, arg.MemberID, arg.Status, arg.ExpiresAt)
	return err
}
