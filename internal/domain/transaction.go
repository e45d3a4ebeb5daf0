// Package domain contains core business types and interfaces.
//
// This file defines the purchase-ledger transaction type. Quota spends are
// recorded as zero-price transactions that move through the same
// pending -> complete lifecycle as paid purchases so billing and reporting
// treat them uniformly. The QuotaGrant flag is the marker that identifies
// them later (e.g. on refund).
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionStatus is the state of a ledger transaction.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusComplete TransactionStatus = "complete"
	TransactionStatusRefunded TransactionStatus = "refunded"
)

// GatewayManual is the payment gateway recorded on quota-grant
// transactions, which never touch a real payment processor.
const GatewayManual = "manual"

// TransactionItem is a single cart line of a transaction.
type TransactionItem struct {
	DownloadID uuid.UUID
	PriceCents int64
}

// Transaction is a completed or in-flight purchase record.
type Transaction struct {
	ID          uuid.UUID
	MemberID    uuid.UUID
	Status      TransactionStatus
	Gateway     string
	PaymentKey  string // opaque key used when constructing file URLs
	Email       string
	TotalCents  int64
	QuotaGrant  bool // true when created by the member-download flow
	Items       []TransactionItem
	CartDetails json.RawMessage // snapshot of the cart at purchase time
	Note        string
	CreatedAt   time.Time
	CompletedAt *time.Time
	RefundedAt  *time.Time
}

// Contains returns true if the transaction's cart includes the item.
func (t *Transaction) Contains(downloadID uuid.UUID) bool {
	for _, item := range t.Items {
		if item.DownloadID == downloadID {
			return true
		}
	}
	return false
}

// Complete transitions the transaction from pending to complete.
// Any other starting state is a conflict.
func (t *Transaction) Complete(now time.Time) error {
	if t.Status != TransactionStatusPending {
		return Conflict("transaction.complete",
			"only pending transactions can be completed")
	}
	t.Status = TransactionStatusComplete
	t.CompletedAt = &now
	return nil
}

// Refund transitions the transaction from complete to refunded.
func (t *Transaction) Refund(now time.Time) error {
	if t.Status != TransactionStatusComplete {
		return Conflict("transaction.refund",
			"only completed transactions can be refunded")
	}
	t.Status = TransactionStatusRefunded
	t.RefundedAt = &now
	return nil
}
