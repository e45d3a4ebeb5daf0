package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBillingEvents struct {
	resetCalls  []uuid.UUID
	refundCalls []uuid.UUID
	resetErr    error
	refundErr   error
}

func (f *fakeBillingEvents) OnPeriodStart(ctx context.Context, memberID uuid.UUID) error {
	f.resetCalls = append(f.resetCalls, memberID)
	return f.resetErr
}

func (f *fakeBillingEvents) OnRefund(ctx context.Context, transactionID uuid.UUID) error {
	f.refundCalls = append(f.refundCalls, transactionID)
	return f.refundErr
}

func TestPeriodResetHandler(t *testing.T) {
	logger := slog.Default()

	t.Run("resets the member counter", func(t *testing.T) {
		events := &fakeBillingEvents{}
		h := NewPeriodResetHandler(events, logger)

		memberID := uuid.New()
		payload, err := json.Marshal(worker.PeriodResetPayload{MemberID: memberID})
		require.NoError(t, err)

		require.NoError(t, h.Handle(context.Background(), payload))
		require.Len(t, events.resetCalls, 1)
		assert.Equal(t, memberID, events.resetCalls[0])
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		events := &fakeBillingEvents{}
		h := NewPeriodResetHandler(events, logger)

		err := h.Handle(context.Background(), []byte("not json"))
		require.Error(t, err)
		assert.True(t, worker.IsPermanent(err))
		assert.Empty(t, events.resetCalls)
	})

	t.Run("missing member id is permanent", func(t *testing.T) {
		events := &fakeBillingEvents{}
		h := NewPeriodResetHandler(events, logger)

		err := h.Handle(context.Background(), []byte(`{}`))
		require.Error(t, err)
		assert.True(t, worker.IsPermanent(err))
	})

	t.Run("transient failure is retryable", func(t *testing.T) {
		events := &fakeBillingEvents{
			resetErr: domain.Internal(nil, "quota.reset", "db down"),
		}
		h := NewPeriodResetHandler(events, logger)

		payload, _ := json.Marshal(worker.PeriodResetPayload{MemberID: uuid.New()})
		err := h.Handle(context.Background(), payload)
		require.Error(t, err)
		assert.False(t, worker.IsPermanent(err))
	})
}

func TestRefundReconcileHandler(t *testing.T) {
	logger := slog.Default()

	t.Run("reconciles the transaction", func(t *testing.T) {
		events := &fakeBillingEvents{}
		h := NewRefundReconcileHandler(events, logger)

		txID := uuid.New()
		payload, err := json.Marshal(worker.RefundReconcilePayload{TransactionID: txID})
		require.NoError(t, err)

		require.NoError(t, h.Handle(context.Background(), payload))
		require.Len(t, events.refundCalls, 1)
		assert.Equal(t, txID, events.refundCalls[0])
	})

	t.Run("missing transaction is permanent", func(t *testing.T) {
		events := &fakeBillingEvents{
			refundErr: domain.NotFound("ledger.get", "transaction", uuid.NewString()),
		}
		h := NewRefundReconcileHandler(events, logger)

		payload, _ := json.Marshal(worker.RefundReconcilePayload{TransactionID: uuid.New()})
		err := h.Handle(context.Background(), payload)
		require.Error(t, err)
		assert.True(t, worker.IsPermanent(err))
	})

	t.Run("unrefunded transaction is permanent", func(t *testing.T) {
		events := &fakeBillingEvents{
			refundErr: domain.Conflict("billing_events.on_refund", "transaction is not refunded"),
		}
		h := NewRefundReconcileHandler(events, logger)

		payload, _ := json.Marshal(worker.RefundReconcilePayload{TransactionID: uuid.New()})
		err := h.Handle(context.Background(), payload)
		require.Error(t, err)
		assert.True(t, worker.IsPermanent(err))
	})

	t.Run("transient failure is retryable", func(t *testing.T) {
		events := &fakeBillingEvents{
			refundErr: domain.Internal(nil, "ledger.get", "db down"),
		}
		h := NewRefundReconcileHandler(events, logger)

		payload, _ := json.Marshal(worker.RefundReconcilePayload{TransactionID: uuid.New()})
		err := h.Handle(context.Background(), payload)
		require.Error(t, err)
		assert.False(t, worker.IsPermanent(err))
	})
}
