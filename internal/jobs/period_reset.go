// Package jobs contains the background job handlers executed by the
// worker. Each handler applies one billing event to the quota state.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
	"github.com/demahagit/rcp-edd-member-downloads/internal/worker"
	"github.com/google/uuid"
)

// PeriodResetHandler resets a member's download counter when a new
// billing period starts.
type PeriodResetHandler struct {
	events service.BillingEvents
	logger *slog.Logger
}

// NewPeriodResetHandler creates a new PeriodResetHandler.
func NewPeriodResetHandler(events service.BillingEvents, logger *slog.Logger) *PeriodResetHandler {
	return &PeriodResetHandler{
		events: events,
		logger: logger,
	}
}

// Type returns the job type identifier.
func (h *PeriodResetHandler) Type() string {
	return worker.JobTypePeriodReset
}

// Handle resets the member's download counter. Safe to retry; resetting
// an already-reset counter is a no-op.
func (h *PeriodResetHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.PeriodResetPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("unmarshal payload: %w", err))
	}
	if p.MemberID == uuid.Nil {
		return worker.NewPermanentError(fmt.Errorf("payload has no member_id"))
	}

	if err := h.events.OnPeriodStart(ctx, p.MemberID); err != nil {
		return fmt.Errorf("reset counter for member %s: %w", p.MemberID, err)
	}

	return nil
}

var _ worker.JobHandler = (*PeriodResetHandler)(nil)
