// Package handler contains the HTTP handlers for member downloads.
//
// This file implements the quota status endpoint.
//
// Route:
//   - GET /api/quota -> HandleQuota
package handler

import (
	"log/slog"
	"net/http"

	"github.com/demahagit/rcp-edd-member-downloads/internal/auth"
	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
)

// QuotaHandler reports the authenticated member's quota state.
type QuotaHandler struct {
	entitlements service.EntitlementService
	enabled      bool
	logger       *slog.Logger
}

// NewQuotaHandler creates a new QuotaHandler.
func NewQuotaHandler(entitlements service.EntitlementService, enabled bool, logger *slog.Logger) *QuotaHandler {
	return &QuotaHandler{
		entitlements: entitlements,
		enabled:      enabled,
		logger:       logger,
	}
}

// RegisterRoutes registers quota routes on the provided mux.
func (h *QuotaHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /api/quota", wrap(http.HandlerFunc(h.HandleQuota)))
}

// HandleQuota returns the member's current entitlement snapshot.
func (h *QuotaHandler) HandleQuota(w http.ResponseWriter, r *http.Request) {
	const op = "handler.quota"

	if !h.enabled {
		ErrorResponse(w, r, h.logger, domain.Unavailable(op, "member downloads are not enabled"))
		return
	}

	member := auth.GetMemberFromRequest(r)
	if member == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	ent, err := h.entitlements.Resolve(r.Context(), member.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":    ent.Active,
		"allowance": ent.Allowance,
		"consumed":  ent.Consumed,
		"remaining": ent.Remaining(),
	})
}
