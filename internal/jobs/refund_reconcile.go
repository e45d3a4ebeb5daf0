package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
	"github.com/demahagit/rcp-edd-member-downloads/internal/worker"
	"github.com/google/uuid"
)

// RefundReconcileHandler returns the quota slot behind a refunded
// quota-grant transaction.
type RefundReconcileHandler struct {
	events service.BillingEvents
	logger *slog.Logger
}

// NewRefundReconcileHandler creates a new RefundReconcileHandler.
func NewRefundReconcileHandler(events service.BillingEvents, logger *slog.Logger) *RefundReconcileHandler {
	return &RefundReconcileHandler{
		events: events,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *RefundReconcileHandler) Type() string {
	return worker.JobTypeRefundReconcile
}

// Handle applies the refund to the quota state. A transaction that does
// not exist or is not refunded will never become reconcilable, so those
// failures are permanent.
func (h *RefundReconcileHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.RefundReconcilePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("unmarshal payload: %w", err))
	}
	if p.TransactionID == uuid.Nil {
		return worker.NewPermanentError(fmt.Errorf("payload has no transaction_id"))
	}

	if err := h.events.OnRefund(ctx, p.TransactionID); err != nil {
		switch domain.ErrorCode(err) {
		case domain.ENOTFOUND, domain.ECONFLICT:
			return worker.NewPermanentError(err)
		}
		return fmt.Errorf("reconcile refund for transaction %s: %w", p.TransactionID, err)
	}

	return nil
}

var _ worker.JobHandler = (*RefundReconcileHandler)(nil)
