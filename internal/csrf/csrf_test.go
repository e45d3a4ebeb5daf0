package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestValidateToken(t *testing.T) {
	assert.True(t, ValidateToken("abc", "abc"))
	assert.False(t, ValidateToken("abc", "abd"))
	assert.False(t, ValidateToken("", "abc"))
	assert.False(t, ValidateToken("abc", ""))
	assert.False(t, ValidateToken("", ""))
}

func TestValidateRequest(t *testing.T) {
	t.Run("header token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
		req.Header.Set(HeaderName, "tok")
		assert.True(t, ValidateRequest(req))
	})

	t.Run("form field fallback", func(t *testing.T) {
		form := url.Values{FormFieldName: {"tok"}}
		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request",
			strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
		assert.True(t, ValidateRequest(req))
	})

	t.Run("missing cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", nil)
		req.Header.Set(HeaderName, "tok")
		assert.False(t, ValidateRequest(req))
	})

	t.Run("mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/downloads/request", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "tok"})
		req.Header.Set(HeaderName, "other")
		assert.False(t, ValidateRequest(req))
	})
}

func TestEnsureToken(t *testing.T) {
	t.Run("issues a new token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/downloads/x/eligibility", nil)
		rec := httptest.NewRecorder()

		token, err := EnsureToken(rec, req, false)
		require.NoError(t, err)
		assert.NotEmpty(t, token)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, CookieName, cookies[0].Name)
		assert.Equal(t, token, cookies[0].Value)
	})

	t.Run("reuses an existing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/downloads/x/eligibility", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "existing"})
		rec := httptest.NewRecorder()

		token, err := EnsureToken(rec, req, false)
		require.NoError(t, err)
		assert.Equal(t, "existing", token)
		assert.Empty(t, rec.Result().Cookies())
	})
}
