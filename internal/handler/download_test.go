package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/demahagit/rcp-edd-member-downloads/internal/auth"
	"github.com/demahagit/rcp-edd-member-downloads/internal/csrf"
	"github.com/demahagit/rcp-edd-member-downloads/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves a fixed set of downloads.
type fakeCatalog struct {
	downloads map[uuid.UUID]*domain.Download
}

func (f *fakeCatalog) Get(ctx context.Context, id uuid.UUID) (*domain.Download, error) {
	d, ok := f.downloads[id]
	if !ok {
		return nil, domain.NotFound("catalog.get", "download", id.String())
	}
	return d, nil
}

// fakeAuthorizer returns canned results.
type fakeAuthorizer struct {
	eligibility *domain.Eligibility
	grant       *domain.DownloadGrant
	err         error
}

func (f *fakeAuthorizer) Eligible(ctx context.Context, memberID uuid.UUID, download *domain.Download) (*domain.Eligibility, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.eligibility, nil
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, member *domain.Member, download *domain.Download) (*domain.DownloadGrant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.grant, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withMember simulates the auth middleware.
func withMember(member *domain.Member) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if member != nil {
				r = r.WithContext(auth.SetMember(r.Context(), member))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newDownloadMux(h *DownloadHandler, member *domain.Member) *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, withMember(member))
	return mux
}

func addCSRF(r *http.Request) {
	const token = "test-csrf-token"
	r.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: token})
	r.Header.Set(csrf.HeaderName, token)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleEligibility(t *testing.T) {
	member := &domain.Member{ID: uuid.New(), Email: "member@example.com"}
	download := &domain.Download{ID: uuid.New(), Name: "Sample", FileKeys: []string{"products/x/a.zip"}}
	catalog := &fakeCatalog{downloads: map[uuid.UUID]*domain.Download{download.ID: download}}

	t.Run("eligible member", func(t *testing.T) {
		authorizer := &fakeAuthorizer{eligibility: &domain.Eligibility{Eligible: true, Remaining: 3}}
		h := NewDownloadHandler(catalog, authorizer, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodGet, "/api/downloads/"+download.ID.String()+"/eligibility", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["eligible"])
		assert.Equal(t, float64(3), body["remaining"])

		// The CSRF cookie the request endpoint expects must be issued.
		cookies := rec.Result().Cookies()
		var found bool
		for _, c := range cookies {
			if c.Name == csrf.CookieName && c.Value != "" {
				found = true
			}
		}
		assert.True(t, found, "eligibility response must set the csrf cookie")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, true, false, testLogger())
		mux := newDownloadMux(h, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/downloads/"+download.ID.String()+"/eligibility", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown download", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodGet, "/api/downloads/"+uuid.NewString()+"/eligibility", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodGet, "/api/downloads/not-a-uuid/eligibility", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("feature disabled", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, false, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodGet, "/api/downloads/"+download.ID.String()+"/eligibility", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHandleRequest(t *testing.T) {
	member := &domain.Member{ID: uuid.New(), Email: "member@example.com"}
	download := &domain.Download{ID: uuid.New(), Name: "Sample", FileKeys: []string{"products/x/a.zip"}}
	catalog := &fakeCatalog{downloads: map[uuid.UUID]*domain.Download{download.ID: download}}

	requestBody := func() io.Reader {
		return strings.NewReader(`{"download_id":"` + download.ID.String() + `"}`)
	}

	t.Run("grant issued", func(t *testing.T) {
		grant := &domain.DownloadGrant{
			URL:           "https://files.example.com/a.zip",
			Outcome:       domain.OutcomeQuotaSpent,
			TransactionID: uuid.New(),
		}
		h := NewDownloadHandler(catalog, &fakeAuthorizer{grant: grant}, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", requestBody())
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, grant.URL, body["file"])
		assert.Equal(t, string(domain.OutcomeQuotaSpent), body["outcome"])
	})

	t.Run("missing csrf token", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", requestBody())
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("mismatched csrf token", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", requestBody())
		req.AddCookie(&http.Cookie{Name: csrf.CookieName, Value: "cookie-value"})
		req.Header.Set(csrf.HeaderName, "different-value")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, true, false, testLogger())
		mux := newDownloadMux(h, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", requestBody())
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("at limit", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{err: domain.AtLimit("authorizer.authorize")}, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", requestBody())
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		body := decodeBody(t, rec)
		errObj, ok := body["error"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, domain.EPAYMENT, errObj["code"])
	})

	t.Run("missing download_id", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", strings.NewReader(`{}`))
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown download", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, true, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request",
			strings.NewReader(`{"download_id":"`+uuid.NewString()+`"}`))
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("feature disabled", func(t *testing.T) {
		h := NewDownloadHandler(catalog, &fakeAuthorizer{}, false, false, testLogger())
		mux := newDownloadMux(h, member)

		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", requestBody())
		addCSRF(req)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
