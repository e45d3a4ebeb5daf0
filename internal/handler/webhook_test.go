package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

// fakeBilling accepts a single known signature and serves a canned event.
type fakeBilling struct {
	event stripe.Event
}

func (f *fakeBilling) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	if signature != "valid-signature" {
		return stripe.Event{}, domain.Unauthorized("billing.verify", "bad signature")
	}
	return f.event, nil
}

func (f *fakeBilling) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	return nil, nil
}

func (f *fakeBilling) CreateRefund(paymentIntentID string) (string, error) {
	return "re_test", nil
}

// webhookMembers maps Stripe customer IDs to members.
type webhookMembers struct {
	fakeMembers
	byCustomer map[string]*domain.Member
}

func (f *webhookMembers) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.Member, error) {
	m, ok := f.byCustomer[customerID]
	if !ok {
		return nil, domain.NotFound("member.get_by_stripe_customer", "member", customerID)
	}
	return m, nil
}

// fakeMembers satisfies the remaining MemberService methods.
type fakeMembers struct{}

func (f *fakeMembers) Get(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	return nil, domain.NotFound("member.get", "member", id.String())
}

func (f *fakeMembers) GetBySessionToken(ctx context.Context, token string) (*domain.Member, error) {
	return nil, domain.Unauthorized("member.get_by_session_token", "invalid session")
}

func (f *fakeMembers) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.Member, error) {
	return nil, domain.NotFound("member.get_by_stripe_customer", "member", customerID)
}

// syncRecorder records subscription status syncs.
type syncRecorder struct {
	memberID uuid.UUID
	status   domain.SubscriptionStatus
	expires  *time.Time
	called   bool
}

func (f *syncRecorder) Resolve(ctx context.Context, memberID uuid.UUID) (*domain.Entitlement, error) {
	return &domain.Entitlement{MemberID: memberID}, nil
}

func (f *syncRecorder) HasDownloadMembership(ctx context.Context, memberID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *syncRecorder) SyncSubscriptionStatus(ctx context.Context, memberID uuid.UUID, status domain.SubscriptionStatus, expiresAt *time.Time) error {
	f.called = true
	f.memberID = memberID
	f.status = status
	f.expires = expiresAt
	return nil
}

func stripeEvent(t *testing.T, eventType string, object interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func postWebhook(h *WebhookHandler, signature string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, func(next http.Handler) http.Handler { return next })

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleStripeWebhook(t *testing.T) {
	member := &domain.Member{ID: uuid.New(), Email: "member@example.com", StripeCustomerID: "cus_123"}
	members := &webhookMembers{byCustomer: map[string]*domain.Member{"cus_123": member}}

	t.Run("billing disabled", func(t *testing.T) {
		h := NewWebhookHandler(nil, members, &syncRecorder{}, &refundLedger{}, testQueries(t), testLogger())
		rec := postWebhook(h, "valid-signature")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		billing := &fakeBilling{}
		h := NewWebhookHandler(billing, members, &syncRecorder{}, &refundLedger{}, testQueries(t), testLogger())
		rec := postWebhook(h, "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unhandled event type is acknowledged", func(t *testing.T) {
		billing := &fakeBilling{event: stripeEvent(t, "customer.created", map[string]string{"id": "cus_123"})}
		h := NewWebhookHandler(billing, members, &syncRecorder{}, &refundLedger{}, testQueries(t), testLogger())
		rec := postWebhook(h, "valid-signature")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("subscription update syncs status", func(t *testing.T) {
		periodEnd := time.Now().Add(30 * 24 * time.Hour).Unix()
		billing := &fakeBilling{event: stripeEvent(t, "customer.subscription.updated", map[string]interface{}{
			"id":                 "sub_123",
			"customer":           map[string]string{"id": "cus_123"},
			"status":             "past_due",
			"current_period_end": periodEnd,
		})}
		sync := &syncRecorder{}
		h := NewWebhookHandler(billing, members, sync, &refundLedger{}, testQueries(t), testLogger())

		rec := postWebhook(h, "valid-signature")
		require.Equal(t, http.StatusOK, rec.Code)

		require.True(t, sync.called)
		assert.Equal(t, member.ID, sync.memberID)
		assert.Equal(t, domain.SubscriptionStatusPastDue, sync.status)
		require.NotNil(t, sync.expires)
		assert.Equal(t, periodEnd, sync.expires.Unix())
	})

	t.Run("subscription for unknown customer is ignored", func(t *testing.T) {
		billing := &fakeBilling{event: stripeEvent(t, "customer.subscription.deleted", map[string]interface{}{
			"id":       "sub_456",
			"customer": map[string]string{"id": "cus_unknown"},
			"status":   "canceled",
		})}
		sync := &syncRecorder{}
		h := NewWebhookHandler(billing, members, sync, &refundLedger{}, testQueries(t), testLogger())

		rec := postWebhook(h, "valid-signature")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, sync.called)
	})

	t.Run("refund for unknown transaction is acknowledged", func(t *testing.T) {
		billing := &fakeBilling{event: stripeEvent(t, "charge.refunded", map[string]interface{}{
			"id":       "ch_123",
			"metadata": map[string]string{"transaction_id": uuid.NewString()},
		})}
		h := NewWebhookHandler(billing, members, &syncRecorder{}, &refundLedger{}, testQueries(t), testLogger())

		rec := postWebhook(h, "valid-signature")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("refund without transaction reference is ignored", func(t *testing.T) {
		billing := &fakeBilling{event: stripeEvent(t, "charge.refunded", map[string]interface{}{
			"id": "ch_456",
		})}
		ledger := &refundLedger{}
		h := NewWebhookHandler(billing, members, &syncRecorder{}, ledger, testQueries(t), testLogger())

		rec := postWebhook(h, "valid-signature")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, uuid.Nil, ledger.refundedID)
	})
}

func TestSubscriptionStatusFromStripe(t *testing.T) {
	tests := []struct {
		stripe stripe.SubscriptionStatus
		want   domain.SubscriptionStatus
	}{
		{stripe.SubscriptionStatusActive, domain.SubscriptionStatusActive},
		{stripe.SubscriptionStatusTrialing, domain.SubscriptionStatusActive},
		{stripe.SubscriptionStatusPastDue, domain.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusUnpaid, domain.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusCanceled, domain.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusIncompleteExpired, domain.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusIncomplete, domain.SubscriptionStatusPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.stripe), func(t *testing.T) {
			assert.Equal(t, tt.want, subscriptionStatusFromStripe(tt.stripe))
		})
	}
}
