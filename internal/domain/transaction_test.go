package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionComplete(t *testing.T) {
	now := time.Now()

	t.Run("pending completes", func(t *testing.T) {
		tx := Transaction{Status: TransactionStatusPending}
		require.NoError(t, tx.Complete(now))
		assert.Equal(t, TransactionStatusComplete, tx.Status)
		require.NotNil(t, tx.CompletedAt)
		assert.Equal(t, now, *tx.CompletedAt)
	})

	t.Run("complete cannot complete again", func(t *testing.T) {
		tx := Transaction{Status: TransactionStatusComplete}
		err := tx.Complete(now)
		require.Error(t, err)
		assert.Equal(t, ECONFLICT, ErrorCode(err))
	})

	t.Run("refunded cannot complete", func(t *testing.T) {
		tx := Transaction{Status: TransactionStatusRefunded}
		assert.Error(t, tx.Complete(now))
	})
}

func TestTransactionRefund(t *testing.T) {
	now := time.Now()

	t.Run("complete refunds", func(t *testing.T) {
		tx := Transaction{Status: TransactionStatusComplete}
		require.NoError(t, tx.Refund(now))
		assert.Equal(t, TransactionStatusRefunded, tx.Status)
		require.NotNil(t, tx.RefundedAt)
	})

	t.Run("pending cannot refund", func(t *testing.T) {
		tx := Transaction{Status: TransactionStatusPending}
		err := tx.Refund(now)
		require.Error(t, err)
		assert.Equal(t, ECONFLICT, ErrorCode(err))
	})

	t.Run("refunded cannot refund again", func(t *testing.T) {
		tx := Transaction{Status: TransactionStatusRefunded}
		assert.Error(t, tx.Refund(now))
	})
}

func TestTransactionContains(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	tx := Transaction{Items: []TransactionItem{{DownloadID: a}, {DownloadID: b}}}

	assert.True(t, tx.Contains(a))
	assert.True(t, tx.Contains(b))
	assert.False(t, tx.Contains(c))
}

func TestSubscriptionIsActive(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"active unexpired", Subscription{Status: SubscriptionStatusActive, ExpiresAt: &future}, true},
		{"active no expiry", Subscription{Status: SubscriptionStatusActive}, true},
		{"active but lapsed", Subscription{Status: SubscriptionStatusActive, ExpiresAt: &past}, false},
		{"pending", Subscription{Status: SubscriptionStatusPending, ExpiresAt: &future}, false},
		{"expired", Subscription{Status: SubscriptionStatusExpired}, false},
		{"canceled", Subscription{Status: SubscriptionStatusCanceled, ExpiresAt: &future}, false},
		{"past due", Subscription{Status: SubscriptionStatusPastDue, ExpiresAt: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.IsActive())
		})
	}
}
