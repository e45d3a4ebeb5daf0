// Package email provides transactional email sending for member downloads.
//
// The service sends purchase receipts and refund notices via SMTP. Quota
// fulfillments also record a transaction, but their receipt is suppressed
// at the ledger layer so members are not mailed for every included download.
package email

import (
	"context"

	"github.com/google/uuid"
)

// Notifier defines the interface for sending transactional emails.
//
// Implementations:
// - SMTPNotifier: Uses SMTP protocol (Mailhog for dev, Postmark SMTP for prod)
//
// All methods are context-aware for timeout and cancellation support.
type Notifier interface {
	// SendPurchaseReceipt sends a receipt for a completed transaction.
	SendPurchaseReceipt(ctx context.Context, to, name string, receipt Receipt) error

	// SendRefundNotice notifies a member that a transaction was refunded.
	SendRefundNotice(ctx context.Context, to, name string, receipt Receipt) error
}

// Receipt carries the transaction details rendered into receipt emails.
type Receipt struct {
	TransactionID uuid.UUID
	PaymentKey    string
	Items         []ReceiptItem
	TotalCents    int64
}

// ReceiptItem is a single line item on a receipt.
type ReceiptItem struct {
	Name       string
	PriceCents int64
}

// Email represents a single email message.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "noreply@example.com"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Member Downloads"
)
