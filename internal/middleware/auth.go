// Package middleware contains HTTP middleware for the member downloads
// service.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed with Stack.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/demahagit/rcp-edd-member-downloads/internal/auth"
	"github.com/demahagit/rcp-edd-member-downloads/internal/handler"
	"github.com/demahagit/rcp-edd-member-downloads/internal/service"
	"github.com/demahagit/rcp-edd-member-downloads/internal/session"
)

// AuthMiddleware resolves the session cookie into a member.
type AuthMiddleware struct {
	members  service.MemberService
	logger   *slog.Logger
	isSecure bool
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
// Set isSecure to true in production so session cookies carry the Secure
// flag.
func NewAuthMiddleware(members service.MemberService, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		members:  members,
		logger:   logger,
		isSecure: isSecure,
	}
}

// WithMember attempts to load the member from the session cookie.
//
// The request always continues to the next handler; handlers that need a
// member check the context via auth.GetMemberFromRequest. An invalid or
// expired session clears the cookie.
func (m *AuthMiddleware) WithMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		member, err := m.members.GetBySessionToken(r.Context(), cookie.Value)
		if err != nil {
			clearSessionCookie(w, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		r = r.WithContext(auth.SetMember(r.Context(), member))
		next.ServeHTTP(w, r)
	})
}

// RequireMember rejects unauthenticated requests with a 401 JSON error.
// Must run after WithMember.
func (m *AuthMiddleware) RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetMemberFromRequest(r) == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests from members whose email is not in the
// configured admin list. Must run after WithMember.
func (m *AuthMiddleware) RequireAdmin(adminEmails []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			allowed[email] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			member := auth.GetMemberFromRequest(r)
			if member == nil {
				handler.UnauthorizedResponse(w, r, m.logger)
				return
			}
			if !allowed[strings.ToLower(member.Email)] {
				m.logger.Warn("admin access denied",
					"member_id", member.ID,
					"path", r.URL.Path,
				)
				handler.ForbiddenResponse(w, r, m.logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetSessionCookie sets the session cookie on the response.
//
// HttpOnly and SameSite=Lax are always set; Secure follows isSecure.
func SetSessionCookie(w http.ResponseWriter, token string, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   session.CookieMaxAge,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie from the client.
func ClearSessionCookie(w http.ResponseWriter, isSecure bool) {
	clearSessionCookie(w, isSecure)
}

func clearSessionCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Stack composes multiple middleware functions into a single middleware.
// The first middleware in the list is the outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
