package service

import (
	"context"
	"log/slog"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/metrics"
	"github.com/google/uuid"
)

// BillingEvents applies billing lifecycle events to the quota state.
// Both handlers are safe to retry; the worker may deliver an event more
// than once.
type BillingEvents interface {
	// OnPeriodStart resets the member's download counter for the new
	// billing period.
	OnPeriodStart(ctx context.Context, memberID uuid.UUID) error

	// OnRefund returns the quota slot spent by a refunded quota-grant
	// transaction. Refunds of paid purchases leave the counter alone.
	OnRefund(ctx context.Context, transactionID uuid.UUID) error
}

type billingEvents struct {
	quota  QuotaStore
	ledger PurchaseLedger
	logger *slog.Logger
}

// NewBillingEvents creates a new BillingEvents.
func NewBillingEvents(quota QuotaStore, ledger PurchaseLedger, logger *slog.Logger) BillingEvents {
	return &billingEvents{
		quota:  quota,
		ledger: ledger,
		logger: logger,
	}
}

// OnPeriodStart resets the member's download counter.
func (s *billingEvents) OnPeriodStart(ctx context.Context, memberID uuid.UUID) error {
	if err := s.quota.Reset(ctx, memberID); err != nil {
		return err
	}

	metrics.PeriodResetsTotal.Inc()

	s.logger.Info("download counter reset for new period", "member_id", memberID)

	return nil
}

// OnRefund returns the quota slot spent by a refunded quota-grant
// transaction.
func (s *billingEvents) OnRefund(ctx context.Context, transactionID uuid.UUID) error {
	const op = "billing_events.on_refund"

	tx, err := s.ledger.Get(ctx, transactionID)
	if err != nil {
		return err
	}

	if tx.Status != domain.TransactionStatusRefunded {
		return domain.Conflict(op, "transaction is not refunded")
	}

	if !tx.QuotaGrant {
		// Paid purchase; nothing to give back
		return nil
	}

	if err := s.quota.Decrement(ctx, tx.MemberID); err != nil {
		return err
	}

	metrics.QuotaRefundsTotal.Inc()

	s.logger.Info("quota slot returned for refunded transaction",
		"transaction_id", transactionID,
		"member_id", tx.MemberID,
	)

	return nil
}
