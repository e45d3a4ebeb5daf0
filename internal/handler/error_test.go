package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EPAYMENT, http.StatusPaymentRequired},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EUNAVAILABLE, http.StatusServiceUnavailable},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}

func TestErrorResponse(t *testing.T) {
	t.Run("domain error passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/quota", nil)
		rec := httptest.NewRecorder()

		ErrorResponse(rec, req, testLogger(), domain.AtLimit("authorizer.authorize"))

		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		body := decodeBody(t, rec)
		errObj := body["error"].(map[string]interface{})
		assert.Equal(t, domain.EPAYMENT, errObj["code"])
		assert.Equal(t, "You have reached the limit defined by your membership.", errObj["message"])
	})

	t.Run("internal details are not leaked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/quota", nil)
		rec := httptest.NewRecorder()

		err := domain.Internal(assert.AnError, "ledger.get", "failed to load transaction")
		ErrorResponse(rec, req, testLogger(), err)

		require.Equal(t, http.StatusInternalServerError, rec.Code)

		body := decodeBody(t, rec)
		errObj := body["error"].(map[string]interface{})
		assert.NotContains(t, errObj["message"], assert.AnError.Error())
	})
}
