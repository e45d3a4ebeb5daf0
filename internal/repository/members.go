package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Member is the database representation of a member.
type Member struct {
	ID               uuid.UUID
	Email            string
	Name             sql.NullString
	StripeCustomerID sql.NullString
	CreatedAt        sql.NullTime
	UpdatedAt        sql.NullTime
}

const getMember = `
SELECT id, email, name, stripe_customer_id, created_at, updated_at
FROM members
WHERE id = $1
`

func (q *Queries) GetMember(ctx context.Context, id uuid.UUID) (Member, error) {
	row := q.db.QueryRowContext(ctx, getMember, id)
	var m Member
	err := row.Scan(&m.ID, &m.Email, &m.Name, &m.StripeCustomerID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const getMemberByStripeCustomerID = `
SELECT id, email, name, stripe_customer_id, created_at, updated_at
FROM members
WHERE stripe_customer_id = $1
`

func (q *Queries) GetMemberByStripeCustomerID(ctx context.Context, customerID string) (Member, error) {
	row := q.db.QueryRowContext(ctx, getMemberByStripeCustomerID, customerID)
	var m Member
	err := row.Scan(&m.ID, &m.Email, &m.Name, &m.StripeCustomerID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}
