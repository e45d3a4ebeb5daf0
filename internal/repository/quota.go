package repository

import (
	"context"

	"github.com/google/uuid"
)

const getDownloadCount = `
SELECT consumed
FROM download_counts
WHERE member_id = $1
`

// GetDownloadCount returns the consumed count for a member.
// Returns sql.ErrNoRows if the counter was never materialized; callers
// treat that as zero.
func (q *Queries) GetDownloadCount(ctx context.Context, memberID uuid.UUID) (int32, error) {
	row := q.db.QueryRowContext(ctx, getDownloadCount, memberID)
	var consumed int32
	err := row.Scan(&consumed)
	return consumed, err
}

const incrementDownloadCount = `
INSERT INTO download_counts (member_id, consumed, updated_at)
VALUES ($1, 1, now())
ON CONFLICT (member_id) DO UPDATE
SET consumed = download_counts.consumed + 1, updated_at = now()
WHERE download_counts.consumed < $2
RETURNING consumed
`

type IncrementDownloadCountParams struct {
	MemberID uuid.UUID
	Ceiling  int32
}

// IncrementDownloadCount atomically adds one to the member's consumed
// count as long as the current count is below the ceiling. Returns
// sql.ErrNoRows if the guard rejected the increment.
func (q *Queries) IncrementDownloadCount(ctx context.Context, arg IncrementDownloadCountParams) (int32, error) {
	row := q.db.QueryRowContext(ctx, incrementDownloadCount, arg.MemberID, arg.Ceiling)
	var consumed int32
	err := row.Scan(&consumed)
	return consumed, err
}

const decrementDownloadCount = `
UPDATE download_counts
SET consumed = GREATEST(consumed - 1, 0), updated_at = now()
WHERE member_id = $1
`

// DecrementDownloadCount subtracts one from the member's consumed count,
// never going below zero. A missing counter row is a no-op.
func (q *Queries) DecrementDownloadCount(ctx context.Context, memberID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, decrementDownloadCount, memberID)
	return err
}

const resetDownloadCount = `
DELETE FROM download_counts
WHERE member_id = $1
`

// ResetDownloadCount removes the member's counter row; the next read
// materializes it at zero.
func (q *Queries) ResetDownloadCount(ctx context.Context, memberID uuid.UUID) error {
	_, err := q.db.ExecContext(ctx, resetDownloadCount, memberID)
	return err
}
