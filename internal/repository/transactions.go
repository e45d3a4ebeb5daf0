package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Transaction is the database representation of a purchase-ledger record.
type Transaction struct {
	ID          uuid.UUID
	MemberID    uuid.UUID
	Status      string
	Gateway     string
	PaymentKey  string
	Email       string
	TotalCents  int64
	QuotaGrant  bool
	CartDetails pqtype.NullRawMessage
	Note        sql.NullString
	CreatedAt   sql.NullTime
	CompletedAt sql.NullTime
	RefundedAt  sql.NullTime
}

// TransactionItem is a cart line belonging to a transaction.
type TransactionItem struct {
	TransactionID uuid.UUID
	DownloadID    uuid.UUID
	PriceCents    int64
}

const createTransaction = `
INSERT INTO transactions (id, member_id, status, gateway, payment_key, email, total_cents, quota_grant, cart_details, note, created_at)
VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8, $9, now())
RETURNING id, member_id, status, gateway, payment_key, email, total_cents, quota_grant, cart_details, note, created_at, completed_at, refunded_at
`

type CreateTransactionParams struct {
	ID          uuid.UUID
	MemberID    uuid.UUID
	Gateway     string
	PaymentKey  string
	Email       string
	TotalCents  int64
	QuotaGrant  bool
	CartDetails pqtype.NullRawMessage
	Note        sql.NullString
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.ID, arg.MemberID, arg.Gateway, arg.PaymentKey, arg.Email,
		arg.TotalCents, arg.QuotaGrant, arg.CartDetails, arg.Note,
	)
	return scanTransaction(row)
}

const addTransactionItem = `
INSERT INTO transaction_items (transaction_id, download_id, price_cents)
VALUES ($1, $2, $3)
`

type AddTransactionItemParams struct {
	TransactionID uuid.UUID
	DownloadID    uuid.UUID
	PriceCents    int64
}

func (q *Queries) AddTransactionItem(ctx context.Context, arg AddTransactionItemParams) error {
	_, err := q.db.ExecContext(ctx, addTransactionItem, arg.TransactionID, arg.DownloadID, arg.PriceCents)
	return err
}

const completeTransaction = `
UPDATE transactions
SET status = 'complete', completed_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING id, member_id, status, gateway, payment_key, email, total_cents, quota_grant, cart_details, note, created_at, completed_at, refunded_at
`

// CompleteTransaction flips a pending transaction to complete.
// Returns sql.ErrNoRows if the transaction is not pending.
func (q *Queries) CompleteTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, completeTransaction, id)
	return scanTransaction(row)
}

const refundTransaction = `
UPDATE transactions
SET status = 'refunded', refunded_at = now()
WHERE id = $1 AND status = 'complete'
RETURNING id, member_id, status, gateway, payment_key, email, total_cents, quota_grant, cart_details, note, created_at, completed_at, refunded_at
`

// RefundTransaction flips a completed transaction to refunded.
// Returns sql.ErrNoRows if the transaction is not complete.
func (q *Queries) RefundTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, refundTransaction, id)
	return scanTransaction(row)
}

const getTransaction = `
SELECT id, member_id, status, gateway, payment_key, email, total_cents, quota_grant, cart_details, note, created_at, completed_at, refunded_at
FROM transactions
WHERE id = $1
`

func (q *Queries) GetTransaction(ctx context.Context, id uuid.UUID) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	return scanTransaction(row)
}

const hasMemberPurchased = `
SELECT EXISTS (
	SELECT 1
	FROM transactions t
	JOIN transaction_items ti ON ti.transaction_id = t.id
	WHERE t.member_id = $1 AND ti.download_id = $2 AND t.status = 'complete'
)
`

type HasMemberPurchasedParams struct {
	MemberID   uuid.UUID
	DownloadID uuid.UUID
}

func (q *Queries) HasMemberPurchased(ctx context.Context, arg HasMemberPurchasedParams) (bool, error) {
	row := q.db.QueryRowContext(ctx, hasMemberPurchased, arg.MemberID, arg.DownloadID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const findTransactionForItem = `
SELECT t.id, t.member_id, t.status, t.gateway, t.payment_key, t.email, t.total_cents, t.quota_grant, t.cart_details, t.note, t.created_at, t.completed_at, t.refunded_at
FROM transactions t
JOIN transaction_items ti ON ti.transaction_id = t.id
WHERE t.member_id = $1 AND ti.download_id = $2 AND t.status = 'complete' AND t.quota_grant = $3
ORDER BY t.created_at DESC
LIMIT 1
`

type FindTransactionForItemParams struct {
	MemberID   uuid.UUID
	DownloadID uuid.UUID
	QuotaGrant bool
}

// FindTransactionForItem returns the most recent completed transaction
// containing the item, filtered by the quota-grant marker.
func (q *Queries) FindTransactionForItem(ctx context.Context, arg FindTransactionForItemParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, findTransactionForItem, arg.MemberID, arg.DownloadID, arg.QuotaGrant)
	return scanTransaction(row)
}

const listTransactionItems = `
SELECT transaction_id, download_id, price_cents
FROM transaction_items
WHERE transaction_id = $1
`

func (q *Queries) ListTransactionItems(ctx context.Context, transactionID uuid.UUID) ([]TransactionItem, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionItems, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TransactionItem
	for rows.Next() {
		var item TransactionItem
		if err := rows.Scan(&item.TransactionID, &item.DownloadID, &item.PriceCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	err := row.Scan(
		&t.ID,
		&t.MemberID,
		&t.Status,
		&t.Gateway,
		&t.PaymentKey,
		&t.Email,
		&t.TotalCents,
		&t.QuotaGrant,
		&t.CartDetails,
		&t.Note,
		&t.CreatedAt,
		&t.CompletedAt,
		&t.RefundedAt,
	)
	return t, err
}
