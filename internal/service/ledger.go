// Package service contains the business logic layer.
//
// This file implements the purchase ledger. Every fulfilled download has a
// ledger record behind it: real purchases arrive from the billing system,
// while quota fulfillments synthesize a zero-price manual-gateway
// transaction so reporting, refunds, and re-download checks treat both
// paths the same way.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/email"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/demahagit/rcp-edd-member-downloads/internal/storage"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// QuotaTransactionNote is recorded on every quota-grant transaction so
// the origin of the record stays visible in billing history.
const QuotaTransactionNote = "Downloaded with membership"

// PurchaseLedger records and reads download transactions.
type PurchaseLedger interface {
	// Get returns a transaction with its items.
	Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)

	// HasPurchased reports whether the member has any completed
	// transaction containing the item, quota-granted or paid.
	HasPurchased(ctx context.Context, memberID, downloadID uuid.UUID) (bool, error)

	// FindGrantSource returns the completed transaction a re-download of
	// the item should be served from. Quota-grant records are preferred;
	// paid purchases are the fallback. Returns nil if none exists.
	FindGrantSource(ctx context.Context, memberID, downloadID uuid.UUID) (*domain.Transaction, error)

	// CreateQuotaTransaction records a zero-price transaction for a
	// quota-fulfilled download and completes it.
	CreateQuotaTransaction(ctx context.Context, arg QuotaTransactionParams) (*domain.Transaction, error)

	// DownloadURL resolves a short-lived file URL for the item under the
	// given transaction.
	DownloadURL(ctx context.Context, tx *domain.Transaction, download *domain.Download) (string, error)

	// Refund flips a completed transaction to refunded and notifies the
	// member for paid purchases.
	Refund(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
}

// QuotaTransactionParams describes a quota fulfillment to record.
type QuotaTransactionParams struct {
	Member   *domain.Member
	Download *domain.Download

	// SuppressReceipt skips the purchase receipt email. Quota spends set
	// this; members should not be mailed for every included download.
	SuppressReceipt bool
}

type purchaseLedger struct {
	db       *sql.DB
	queries  *repository.Queries
	store    storage.Storage
	notifier email.Notifier
	linkTTL  time.Duration
	logger   *slog.Logger
}

// NewPurchaseLedger creates a new PurchaseLedger. linkTTL bounds the
// lifetime of download URLs handed out by DownloadURL.
func NewPurchaseLedger(
	db *sql.DB,
	queries *repository.Queries,
	store storage.Storage,
	notifier email.Notifier,
	linkTTL time.Duration,
	logger *slog.Logger,
) PurchaseLedger {
	return &purchaseLedger{
		db:       db,
		queries:  queries,
		store:    store,
		notifier: notifier,
		linkTTL:  linkTTL,
		logger:   logger,
	}
}

// Get returns a transaction with its items.
func (s *purchaseLedger) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	const op = "ledger.get"

	row, err := s.queries.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "transaction", id.String())
		}
		return nil, domain.Internal(err, op, "failed to load transaction")
	}

	return s.withItems(ctx, op, row)
}

// HasPurchased reports whether the member owns the item.
func (s *purchaseLedger) HasPurchased(ctx context.Context, memberID, downloadID uuid.UUID) (bool, error) {
	const op = "ledger.has_purchased"

	owned, err := s.queries.HasMemberPurchased(ctx, repository.HasMemberPurchasedParams{
		MemberID:   memberID,
		DownloadID: downloadID,
	})
	if err != nil {
		return false, domain.Internal(err, op, "failed to check purchases")
	}

	return owned, nil
}

// FindGrantSource returns the transaction a re-download should use.
//
// Quota-grant records are checked first so a member who both spent quota
// on an item and later bought it keeps re-downloading against the quota
// record, leaving the paid record clean for refund accounting.
func (s *purchaseLedger) FindGrantSource(ctx context.Context, memberID, downloadID uuid.UUID) (*domain.Transaction, error) {
	const op = "ledger.find_grant_source"

	for _, quotaGrant := range []bool{true, false} {
		row, err := s.queries.FindTransactionForItem(ctx, repository.FindTransactionForItemParams{
			MemberID:   memberID,
			DownloadID: downloadID,
			QuotaGrant: quotaGrant,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, domain.Internal(err, op, "failed to search transactions")
		}
		return s.withItems(ctx, op, row)
	}

	return nil, nil
}

// CreateQuotaTransaction records a completed zero-price transaction for a
// quota-fulfilled download.
//
// The record moves through the same pending -> complete lifecycle as a
// paid purchase, inside one database transaction so a crash never leaves
// a half-written grant behind.
func (s *purchaseLedger) CreateQuotaTransaction(ctx context.Context, arg QuotaTransactionParams) (*domain.Transaction, error) {
	const op = "ledger.create_quota_transaction"

	if arg.Member == nil || arg.Download == nil {
		return nil, domain.Invalid(op, "member and download are required")
	}

	cart, err := json.Marshal(map[string]interface{}{
		"items": []map[string]interface{}{
			{
				"id":          arg.Download.ID,
				"name":        arg.Download.Name,
				"price_cents": 0,
			},
		},
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to encode cart details")
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to begin transaction")
	}
	defer dbTx.Rollback()

	qtx := s.queries.WithTx(dbTx)

	txID := uuid.New()
	created, err := qtx.CreateTransaction(ctx, repository.CreateTransactionParams{
		ID:          txID,
		MemberID:    arg.Member.ID,
		Gateway:     domain.GatewayManual,
		PaymentKey:  uuid.NewString(),
		Email:       arg.Member.Email,
		TotalCents:  0,
		QuotaGrant:  true,
		CartDetails: pqtype.NullRawMessage{RawMessage: cart, Valid: true},
		Note:        sql.NullString{String: QuotaTransactionNote, Valid: true},
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create transaction")
	}

	if err := qtx.AddTransactionItem(ctx, repository.AddTransactionItemParams{
		TransactionID: created.ID,
		DownloadID:    arg.Download.ID,
		PriceCents:    0,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to add transaction item")
	}

	completed, err := qtx.CompleteTransaction(ctx, created.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to complete transaction")
	}

	if err := dbTx.Commit(); err != nil {
		return nil, domain.Internal(err, op, "failed to commit transaction")
	}

	result := toDomainTransaction(completed)
	result.Items = []domain.TransactionItem{{DownloadID: arg.Download.ID, PriceCents: 0}}

	s.logger.Info("quota transaction recorded",
		"transaction_id", result.ID,
		"member_id", arg.Member.ID,
		"download_id", arg.Download.ID,
	)

	if !arg.SuppressReceipt {
		s.sendReceipt(ctx, arg.Member, result, arg.Download.Name)
	}

	return result, nil
}

// DownloadURL resolves a short-lived file URL for the item under the
// given transaction.
func (s *purchaseLedger) DownloadURL(ctx context.Context, tx *domain.Transaction, download *domain.Download) (string, error) {
	const op = "ledger.download_url"

	if tx == nil || tx.Status != domain.TransactionStatusComplete {
		return "", domain.Forbidden(op, "no completed transaction covers this download")
	}
	if !download.HasFiles() {
		return "", domain.NotFound(op, "file for download", download.ID.String())
	}

	url, err := s.store.URL(ctx, download.FileKeys[0], s.linkTTL)
	if err != nil {
		return "", domain.Internal(err, op, "failed to resolve file URL")
	}

	return url, nil
}

// Refund flips a completed transaction to refunded.
func (s *purchaseLedger) Refund(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	const op = "ledger.refund"

	row, err := s.queries.RefundTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing transaction from a bad state
			if _, getErr := s.queries.GetTransaction(ctx, id); getErr != nil {
				if errors.Is(getErr, sql.ErrNoRows) {
					return nil, domain.NotFound(op, "transaction", id.String())
				}
				return nil, domain.Internal(getErr, op, "failed to load transaction")
			}
			return nil, domain.Conflict(op, "only completed transactions can be refunded")
		}
		return nil, domain.Internal(err, op, "failed to refund transaction")
	}

	result, err := s.withItems(ctx, op, row)
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction refunded",
		"transaction_id", result.ID,
		"member_id", result.MemberID,
		"quota_grant", result.QuotaGrant,
	)

	// Quota grants carry no money and get no refund notice
	if !result.QuotaGrant {
		s.sendRefundNotice(ctx, result)
	}

	return result, nil
}

func (s *purchaseLedger) withItems(ctx context.Context, op string, row repository.Transaction) (*domain.Transaction, error) {
	items, err := s.queries.ListTransactionItems(ctx, row.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load transaction items")
	}

	result := toDomainTransaction(row)
	for _, item := range items {
		result.Items = append(result.Items, domain.TransactionItem{
			DownloadID: item.DownloadID,
			PriceCents: item.PriceCents,
		})
	}
	return result, nil
}

// sendReceipt mails a purchase receipt. Email failures are logged, not
// surfaced; the transaction is already committed.
func (s *purchaseLedger) sendReceipt(ctx context.Context, member *domain.Member, tx *domain.Transaction, itemName string) {
	receipt := email.Receipt{
		TransactionID: tx.ID,
		PaymentKey:    tx.PaymentKey,
		TotalCents:    tx.TotalCents,
		Items: []email.ReceiptItem{
			{Name: itemName, PriceCents: 0},
		},
	}
	if err := s.notifier.SendPurchaseReceipt(ctx, member.Email, member.DisplayName(), receipt); err != nil {
		s.logger.Warn("failed to send purchase receipt",
			"transaction_id", tx.ID,
			"error", err,
		)
	}
}

// sendRefundNotice mails a refund notice. Failures are logged only.
func (s *purchaseLedger) sendRefundNotice(ctx context.Context, tx *domain.Transaction) {
	receipt := email.Receipt{
		TransactionID: tx.ID,
		PaymentKey:    tx.PaymentKey,
		TotalCents:    tx.TotalCents,
	}
	if err := s.notifier.SendRefundNotice(ctx, tx.Email, tx.Email, receipt); err != nil {
		s.logger.Warn("failed to send refund notice",
			"transaction_id", tx.ID,
			"error", err,
		)
	}
}

func toDomainTransaction(row repository.Transaction) *domain.Transaction {
	t := &domain.Transaction{
		ID:         row.ID,
		MemberID:   row.MemberID,
		Status:     domain.TransactionStatus(row.Status),
		Gateway:    row.Gateway,
		PaymentKey: row.PaymentKey,
		Email:      row.Email,
		TotalCents: row.TotalCents,
		QuotaGrant: row.QuotaGrant,
	}
	if row.CartDetails.Valid {
		t.CartDetails = row.CartDetails.RawMessage
	}
	if row.Note.Valid {
		t.Note = row.Note.String
	}
	if row.CreatedAt.Valid {
		t.CreatedAt = row.CreatedAt.Time
	}
	if row.CompletedAt.Valid {
		ts := row.CompletedAt.Time
		t.CompletedAt = &ts
	}
	if row.RefundedAt.Valid {
		ts := row.RefundedAt.Time
		t.RefundedAt = &ts
	}
	return t
}
