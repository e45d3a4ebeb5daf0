// Package handler contains the HTTP handlers for member downloads.
//
// This file implements the member-facing download endpoints.
//
// Routes:
//   - GET  /api/downloads/{id}/eligibility -> HandleEligibility
//   - POST /api/downloads/request          -> HandleRequest
//
// Both routes require an authenticated member. The eligibility answer is
// advisory; the request endpoint re-validates everything before handing
// out a file URL.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/demahagit/rcp-edd-member-downloads/internal/auth"
	"github.com/demahagit/rcp-edd-member-downloads/internal/csrf"
	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
	"github.com/google/uuid"
)

// DownloadHandler serves the member-facing download endpoints.
type DownloadHandler struct {
	catalog    service.CatalogService
	authorizer service.DownloadAuthorizer
	enabled    bool
	isSecure   bool
	logger     *slog.Logger
}

// NewDownloadHandler creates a new DownloadHandler. enabled mirrors the
// deployment feature flag; when false every endpoint answers 503.
func NewDownloadHandler(
	catalog service.CatalogService,
	authorizer service.DownloadAuthorizer,
	enabled bool,
	isSecure bool,
	logger *slog.Logger,
) *DownloadHandler {
	return &DownloadHandler{
		catalog:    catalog,
		authorizer: authorizer,
		enabled:    enabled,
		isSecure:   isSecure,
		logger:     logger,
	}
}

// RegisterRoutes registers download routes on the provided mux.
// Wrap with the auth middleware stack; these routes require a member.
func (h *DownloadHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /api/downloads/{id}/eligibility", wrap(http.HandlerFunc(h.HandleEligibility)))
	mux.Handle("POST /api/downloads/request", wrap(http.HandlerFunc(h.HandleRequest)))
}

// HandleEligibility answers whether the download affordance should be
// shown for an item, and issues the CSRF token the request endpoint
// expects.
func (h *DownloadHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	const op = "handler.download_eligibility"

	if !h.enabled {
		ErrorResponse(w, r, h.logger, domain.Unavailable(op, "member downloads are not enabled"))
		return
	}

	member := auth.GetMemberFromRequest(r)
	if member == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	downloadID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid download id"))
		return
	}

	download, err := h.catalog.Get(r.Context(), downloadID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	eligibility, err := h.authorizer.Eligible(r.Context(), member.ID, download)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if _, err := csrf.EnsureToken(w, r, h.isSecure); err != nil {
		ErrorResponse(w, r, h.logger, domain.Internal(err, op, "failed to issue token"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"eligible":  eligibility.Eligible,
		"purchased": eligibility.Purchased,
		"remaining": eligibility.Remaining,
	})
}

// downloadRequest is the body of POST /api/downloads/request.
type downloadRequest struct {
	DownloadID uuid.UUID `json:"download_id"`
}

// HandleRequest fulfills a member download: it validates the CSRF token,
// re-checks entitlement, and responds with a short-lived file URL.
func (h *DownloadHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	const op = "handler.download_request"

	if !h.enabled {
		ErrorResponse(w, r, h.logger, domain.Unavailable(op, "member downloads are not enabled"))
		return
	}

	// CSRF before anything else; an unauthenticated answer must not
	// leak whether the token was right.
	if !csrf.ValidateRequest(r) {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "invalid or missing request token"))
		return
	}

	member := auth.GetMemberFromRequest(r)
	if member == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DownloadID == uuid.Nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "a download_id is required"))
		return
	}

	download, err := h.catalog.Get(r.Context(), req.DownloadID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	grant, err := h.authorizer.Authorize(r.Context(), member, download)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"file":    grant.URL,
		"outcome": grant.Outcome,
	})
}
