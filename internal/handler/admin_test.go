package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/demahagit/rcp-edd-member-downloads/internal/repository"
	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLevels stores allowances in memory.
type fakeLevels struct {
	levels     map[uuid.UUID]*domain.SubscriptionLevel
	allowances map[uuid.UUID]int
}

func (f *fakeLevels) Get(ctx context.Context, id uuid.UUID) (*domain.SubscriptionLevel, error) {
	level, ok := f.levels[id]
	if !ok {
		return nil, domain.NotFound("level.get", "subscription level", id.String())
	}
	return level, nil
}

func (f *fakeLevels) GetAllowance(ctx context.Context, levelID uuid.UUID) (int, error) {
	return f.allowances[levelID], nil
}

func (f *fakeLevels) SetAllowance(ctx context.Context, levelID uuid.UUID, allowance int) error {
	if _, ok := f.levels[levelID]; !ok {
		return domain.NotFound("level.set_allowance", "subscription level", levelID.String())
	}
	if allowance <= 0 {
		delete(f.allowances, levelID)
		return nil
	}
	f.allowances[levelID] = allowance
	return nil
}

// refundLedger serves a single transaction and records refund calls.
type refundLedger struct {
	tx         *domain.Transaction
	refundErr  error
	refundedID uuid.UUID
}

func (f *refundLedger) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if f.tx == nil || f.tx.ID != id {
		return nil, domain.NotFound("ledger.get", "transaction", id.String())
	}
	return f.tx, nil
}

func (f *refundLedger) HasPurchased(ctx context.Context, memberID, downloadID uuid.UUID) (bool, error) {
	return false, nil
}

func (f *refundLedger) FindGrantSource(ctx context.Context, memberID, downloadID uuid.UUID) (*domain.Transaction, error) {
	return nil, nil
}

func (f *refundLedger) CreateQuotaTransaction(ctx context.Context, arg service.QuotaTransactionParams) (*domain.Transaction, error) {
	return nil, nil
}

func (f *refundLedger) DownloadURL(ctx context.Context, tx *domain.Transaction, download *domain.Download) (string, error) {
	return "", nil
}

func (f *refundLedger) Refund(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	if f.tx == nil || f.tx.ID != id {
		return nil, domain.NotFound("ledger.refund", "transaction", id.String())
	}
	f.refundedID = id
	tx := *f.tx
	tx.Status = domain.TransactionStatusRefunded
	return &tx, nil
}

// testQueries returns queries over a connection that always fails.
// Refund reconcile enqueues are logged-only failures in the handler.
func testQueries(t *testing.T) *repository.Queries {
	t.Helper()
	db, err := sql.Open("pgx", "postgres://127.0.0.1:1/unreachable")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.New(db)
}

func newAdminMux(h *AdminHandler) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, func(next http.Handler) http.Handler { return next })
	return mux
}

func TestHandleGetAllowance(t *testing.T) {
	levelID := uuid.New()
	levels := &fakeLevels{
		levels:     map[uuid.UUID]*domain.SubscriptionLevel{levelID: {ID: levelID, Name: "Gold"}},
		allowances: map[uuid.UUID]int{levelID: 5},
	}
	h := NewAdminHandler(levels, &refundLedger{}, nil, testQueries(t), testLogger())
	mux := newAdminMux(h)

	t.Run("existing level", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/levels/"+levelID.String()+"/downloads", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(5), body["downloads_allowed"])
	})

	t.Run("unknown level", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/levels/"+uuid.NewString()+"/downloads", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleSetAllowance(t *testing.T) {
	levelID := uuid.New()

	newHandler := func() (*AdminHandler, *fakeLevels) {
		levels := &fakeLevels{
			levels:     map[uuid.UUID]*domain.SubscriptionLevel{levelID: {ID: levelID, Name: "Gold"}},
			allowances: map[uuid.UUID]int{},
		}
		return NewAdminHandler(levels, &refundLedger{}, nil, testQueries(t), testLogger()), levels
	}

	t.Run("set positive allowance", func(t *testing.T) {
		h, levels := newHandler()
		mux := newAdminMux(h)

		req := httptest.NewRequest(http.MethodPost, "/admin/levels/"+levelID.String()+"/downloads",
			strings.NewReader(`{"downloads_allowed": 10}`))
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 10, levels.allowances[levelID])
	})

	t.Run("zero disables downloads", func(t *testing.T) {
		h, levels := newHandler()
		levels.allowances[levelID] = 5
		mux := newAdminMux(h)

		req := httptest.NewRequest(http.MethodPost, "/admin/levels/"+levelID.String()+"/downloads",
			strings.NewReader(`{"downloads_allowed": 0}`))
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		_, exists := levels.allowances[levelID]
		assert.False(t, exists)
	})

	t.Run("missing csrf token", func(t *testing.T) {
		h, _ := newHandler()
		mux := newAdminMux(h)

		req := httptest.NewRequest(http.MethodPost, "/admin/levels/"+levelID.String()+"/downloads",
			strings.NewReader(`{"downloads_allowed": 10}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown level", func(t *testing.T) {
		h, _ := newHandler()
		mux := newAdminMux(h)

		req := httptest.NewRequest(http.MethodPost, "/admin/levels/"+uuid.NewString()+"/downloads",
			strings.NewReader(`{"downloads_allowed": 10}`))
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleRefund(t *testing.T) {
	t.Run("quota grant refunded", func(t *testing.T) {
		tx := &domain.Transaction{
			ID:         uuid.New(),
			MemberID:   uuid.New(),
			Status:     domain.TransactionStatusComplete,
			Gateway:    domain.GatewayManual,
			QuotaGrant: true,
		}
		ledger := &refundLedger{tx: tx}
		h := NewAdminHandler(&fakeLevels{}, ledger, nil, testQueries(t), testLogger())
		mux := newAdminMux(h)

		req := httptest.NewRequest(http.MethodPost, "/admin/transactions/"+tx.ID.String()+"/refund", nil)
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tx.ID, ledger.refundedID)

		body := decodeBody(t, rec)
		assert.Equal(t, string(domain.TransactionStatusRefunded), body["status"])
	})

	t.Run("unknown transaction", func(t *testing.T) {
		h := NewAdminHandler(&fakeLevels{}, &refundLedger{}, nil, testQueries(t), testLogger())
		mux := newAdminMux(h)

		req := httptest.NewRequest(http.MethodPost, "/admin/transactions/"+uuid.NewString()+"/refund", nil)
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("already refunded", func(t *testing.T) {
		ledger := &refundLedger{refundErr: domain.Conflict("ledger.refund", "transaction is already refunded")}
		h := NewAdminHandler(&fakeLevels{}, ledger, nil, testQueries(t), testLogger())
		mux := newAdminMux(h)

		req := httptest.NewRequest(http.MethodPost, "/admin/transactions/"+uuid.NewString()+"/refund", nil)
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing csrf token", func(t *testing.T) {
		h := NewAdminHandler(&fakeLevels{}, &refundLedger{}, nil, testQueries(t), testLogger())
		mux := newAdminMux(h)

		req := httptest.NewRequest(http.MethodPost, "/admin/transactions/"+uuid.NewString()+"/refund", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
