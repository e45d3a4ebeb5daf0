package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledgerWithTx serves a single canned transaction from Get.
type ledgerWithTx struct {
	fakeLedger
	tx *domain.Transaction
}

func (f *ledgerWithTx) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if f.tx == nil || f.tx.ID != id {
		return nil, domain.NotFound("ledger.get", "transaction", id.String())
	}
	return f.tx, nil
}

func newTestBillingEvents(quota QuotaStore, ledger PurchaseLedger) BillingEvents {
	return NewBillingEvents(quota, ledger, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestOnPeriodStart(t *testing.T) {
	quota := &fakeQuota{consumed: 7}
	events := newTestBillingEvents(quota, &fakeLedger{})

	err := events.OnPeriodStart(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, quota.consumed)

	// Retries are harmless
	err = events.OnPeriodStart(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, quota.consumed)
}

func TestOnRefund_QuotaGrantReturnsSlot(t *testing.T) {
	memberID := uuid.New()
	tx := &domain.Transaction{
		ID:         uuid.New(),
		MemberID:   memberID,
		Status:     domain.TransactionStatusRefunded,
		QuotaGrant: true,
	}
	quota := &fakeQuota{consumed: 3}
	events := newTestBillingEvents(quota, &ledgerWithTx{tx: tx})

	err := events.OnRefund(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, quota.consumed)
}

func TestOnRefund_PaidPurchaseLeavesCounter(t *testing.T) {
	tx := &domain.Transaction{
		ID:         uuid.New(),
		MemberID:   uuid.New(),
		Status:     domain.TransactionStatusRefunded,
		QuotaGrant: false,
	}
	quota := &fakeQuota{consumed: 3}
	events := newTestBillingEvents(quota, &ledgerWithTx{tx: tx})

	err := events.OnRefund(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, quota.consumed)
}

func TestOnRefund_NotRefundedConflict(t *testing.T) {
	tx := &domain.Transaction{
		ID:         uuid.New(),
		MemberID:   uuid.New(),
		Status:     domain.TransactionStatusComplete,
		QuotaGrant: true,
	}
	quota := &fakeQuota{consumed: 3}
	events := newTestBillingEvents(quota, &ledgerWithTx{tx: tx})

	err := events.OnRefund(context.Background(), tx.ID)
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, 3, quota.consumed)
}

func TestOnRefund_UnknownTransaction(t *testing.T) {
	quota := &fakeQuota{}
	events := newTestBillingEvents(quota, &ledgerWithTx{})

	err := events.OnRefund(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestOnRefund_CounterFloorsAtZero(t *testing.T) {
	tx := &domain.Transaction{
		ID:         uuid.New(),
		MemberID:   uuid.New(),
		Status:     domain.TransactionStatusRefunded,
		QuotaGrant: true,
	}
	quota := &fakeQuota{consumed: 0}
	events := newTestBillingEvents(quota, &ledgerWithTx{tx: tx})

	err := events.OnRefund(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, quota.consumed)
}
