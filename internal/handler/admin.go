// Package handler contains the HTTP handlers for member downloads.
//
// This file implements the admin endpoints for level configuration and
// transaction refunds.
//
// Routes:
//   - GET  /admin/levels/{id}/downloads      -> HandleGetAllowance
//   - POST /admin/levels/{id}/downloads      -> HandleSetAllowance
//   - POST /admin/transactions/{id}/refund   -> HandleRefund
//
// Wrap these with the admin middleware stack.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/demahagit/rcp-edd-member-downloads/internal/billing"
	"github.com/demahagit/rcp-edd-member-downloads/internal/csrf"
	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
	"github.com/demahagit/rcp-edd-member-downloads/internal/worker"
	"github.com/google/uuid"
)

// AdminHandler serves the admin configuration endpoints.
type AdminHandler struct {
	levels  service.LevelService
	ledger  service.PurchaseLedger
	billing billing.Service
	queries *repository.Queries
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
// billingService may be nil when Stripe is not configured; refunds of
// paid transactions then only update the ledger.
func NewAdminHandler(
	levels service.LevelService,
	ledger service.PurchaseLedger,
	billingService billing.Service,
	queries *repository.Queries,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		levels:  levels,
		ledger:  ledger,
		billing: billingService,
		queries: queries,
		logger:  logger,
	}
}

// RegisterRoutes registers admin routes on the provided mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/levels/{id}/downloads", wrap(http.HandlerFunc(h.HandleGetAllowance)))
	mux.Handle("POST /admin/levels/{id}/downloads", wrap(http.HandlerFunc(h.HandleSetAllowance)))
	mux.Handle("POST /admin/transactions/{id}/refund", wrap(http.HandlerFunc(h.HandleRefund)))
}

// HandleGetAllowance returns the downloads-allowed setting for a level.
func (h *AdminHandler) HandleGetAllowance(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin_get_allowance"

	levelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid level id"))
		return
	}

	if _, err := h.levels.Get(r.Context(), levelID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	allowance, err := h.levels.GetAllowance(r.Context(), levelID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"downloads_allowed": allowance,
	})
}

// allowanceRequest is the body of POST /admin/levels/{id}/downloads.
type allowanceRequest struct {
	DownloadsAllowed int `json:"downloads_allowed"`
}

// HandleSetAllowance stores the downloads-allowed setting for a level.
// Zero or negative disables downloads for the level.
func (h *AdminHandler) HandleSetAllowance(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin_set_allowance"

	if !csrf.ValidateRequest(r) {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid or missing request token"))
		return
	}

	levelID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid level id"))
		return
	}

	var req allowanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid request body"))
		return
	}

	if err := h.levels.SetAllowance(r.Context(), levelID, req.DownloadsAllowed); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	stored := req.DownloadsAllowed
	if stored < 0 {
		stored = 0
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"downloads_allowed": stored,
	})
}

// HandleRefund refunds a transaction. Paid Stripe transactions are also
// refunded at the gateway; quota reconciliation runs asynchronously.
func (h *AdminHandler) HandleRefund(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin_refund"

	if !csrf.ValidateRequest(r) {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid or missing request token"))
		return
	}

	txID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid transaction id"))
		return
	}

	tx, err := h.ledger.Refund(r.Context(), txID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !tx.QuotaGrant && tx.Gateway == "stripe" && h.billing != nil {
		refundID, err := h.billing.CreateRefund(tx.PaymentKey)
		if err != nil {
			// Ledger state is already refunded; gateway refund has to be
			// retried manually.
			h.logger.Error("stripe refund failed",
				"transaction_id", tx.ID,
				"error", err,
			)
		} else {
			h.logger.Info("stripe refund issued",
				"transaction_id", tx.ID,
				"refund_id", refundID,
			)
		}
	}

	if _, err := worker.EnqueueRefundReconcile(r.Context(), h.queries, tx.ID); err != nil {
		h.logger.Error("failed to enqueue refund reconcile",
			"transaction_id", tx.ID,
			"error", err,
		)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     tx.ID,
		"status": tx.Status,
	})
}
