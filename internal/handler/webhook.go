package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/demahagit/rcp-edd-member-downloads/internal/billing"
	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/metrics"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
	"github.com/demahagit/rcp-edd-member-downloads/internal/worker"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// maxWebhookBodySize limits webhook payloads to 64KB.
const maxWebhookBodySize = 64 * 1024

// WebhookHandler receives billing events from Stripe and translates them
// into quota and subscription state changes. Heavy work is pushed onto
// the job queue so the webhook can acknowledge quickly.
type WebhookHandler struct {
	billing      billing.Service
	members      service.MemberService
	entitlements service.EntitlementService
	ledger       service.PurchaseLedger
	queries      *repository.Queries
	logger       *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(
	billingService billing.Service,
	members service.MemberService,
	entitlements service.EntitlementService,
	ledger service.PurchaseLedger,
	queries *repository.Queries,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		billing:      billingService,
		members:      members,
		entitlements: entitlements,
		ledger:       ledger,
		queries:      queries,
		logger:       logger,
	}
}

// RegisterRoutes registers the webhook endpoint on the provided mux.
// The endpoint authenticates via signature verification, not sessions,
// so it takes its own wrapper.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("POST /webhooks/stripe", wrap(http.HandlerFunc(h.HandleStripeWebhook)))
}

// HandleStripeWebhook verifies and dispatches a Stripe webhook event.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "handler.stripe_webhook"

	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Unavailable(op, "billing is not configured"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "failed to read request body"))
		return
	}

	event, err := h.billing.VerifyWebhookSignature(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		ErrorResponse(w, r, h.logger, domain.Unauthorized(op, "invalid webhook signature"))
		return
	}

	eventType := string(event.Type)

	var handleErr error
	switch eventType {
	case "invoice.payment_succeeded":
		handleErr = h.handlePaymentSucceeded(r, event)
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		handleErr = h.handleSubscriptionChange(r, event)
	case "charge.refunded":
		handleErr = h.handleChargeRefunded(r, event)
	default:
		h.logger.Debug("ignoring webhook event", "type", eventType)
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
		return
	}

	if handleErr != nil {
		metrics.WebhookEventsTotal.WithLabelValues(eventType, "failed").Inc()
		ErrorResponse(w, r, h.logger, handleErr)
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(eventType, "processed").Inc()
	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
}

// handlePaymentSucceeded kicks off a quota reset for the member's new
// billing period.
func (h *WebhookHandler) handlePaymentSucceeded(r *http.Request, event stripe.Event) error {
	const op = "handler.webhook_payment_succeeded"

	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return domain.Invalid(op, "malformed invoice payload")
	}
	if invoice.Customer == nil || invoice.Customer.ID == "" {
		return domain.Invalid(op, "invoice has no customer")
	}

	member, err := h.members.GetByStripeCustomerID(r.Context(), invoice.Customer.ID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			// Customer is not a member we track
			h.logger.Debug("webhook for unknown customer",
				"customer_id", invoice.Customer.ID,
			)
			return nil
		}
		return err
	}

	if _, err := worker.EnqueuePeriodReset(r.Context(), h.queries, member.ID); err != nil {
		return domain.Internal(err, op, "failed to enqueue period reset")
	}

	h.logger.Info("period reset enqueued",
		"member_id", member.ID,
		"invoice_id", invoice.ID,
	)

	return nil
}

// handleSubscriptionChange syncs the member's subscription status with
// what Stripe reports.
func (h *WebhookHandler) handleSubscriptionChange(r *http.Request, event stripe.Event) error {
	const op = "handler.webhook_subscription_change"

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return domain.Invalid(op, "malformed subscription payload")
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return domain.Invalid(op, "subscription has no customer")
	}

	member, err := h.members.GetByStripeCustomerID(r.Context(), sub.Customer.ID)
	if err != nil {
		if domain.ErrorCode(err) == domain.ENOTFOUND {
			h.logger.Debug("webhook for unknown customer",
				"customer_id", sub.Customer.ID,
			)
			return nil
		}
		return err
	}

	status := subscriptionStatusFromStripe(sub.Status)

	var expiresAt *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		expiresAt = &t
	}

	return h.entitlements.SyncSubscriptionStatus(r.Context(), member.ID, status, expiresAt)
}

// handleChargeRefunded mirrors a gateway-side refund into the ledger and
// schedules quota reconciliation.
func (h *WebhookHandler) handleChargeRefunded(r *http.Request, event stripe.Event) error {
	const op = "handler.webhook_charge_refunded"

	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return domain.Invalid(op, "malformed charge payload")
	}

	raw, ok := charge.Metadata["transaction_id"]
	if !ok || raw == "" {
		// Charge was not created through this service
		h.logger.Debug("refunded charge has no transaction reference",
			"charge_id", charge.ID,
		)
		return nil
	}

	txID, err := uuid.Parse(raw)
	if err != nil {
		return domain.Invalid(op, "malformed transaction reference on charge")
	}

	if _, err := h.ledger.Refund(r.Context(), txID); err != nil {
		switch domain.ErrorCode(err) {
		case domain.ECONFLICT:
			// Already refunded, likely via the admin endpoint
			h.logger.Debug("transaction already refunded", "transaction_id", txID)
			return nil
		case domain.ENOTFOUND:
			h.logger.Warn("refunded charge references unknown transaction",
				"charge_id", charge.ID,
				"transaction_id", txID,
			)
			return nil
		}
		return err
	}

	if _, err := worker.EnqueueRefundReconcile(r.Context(), h.queries, txID); err != nil {
		return domain.Internal(err, op, "failed to enqueue refund reconcile")
	}

	return nil
}

// subscriptionStatusFromStripe maps Stripe subscription statuses onto the
// states the entitlement model understands.
func subscriptionStatusFromStripe(status stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return domain.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionStatusCanceled
	default:
		return domain.SubscriptionStatusPending
	}
}
