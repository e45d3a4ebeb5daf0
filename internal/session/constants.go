// Package session provides shared session constants used by both
// the handler and middleware packages.
package session

const (
	// CookieName is the name of the cookie that stores the session token.
	CookieName = "member_session"

	// CookiePath ensures the cookie is sent with all requests.
	CookiePath = "/"

	// CookieMaxAge sets the cookie expiration (14 days = 1209600 seconds).
	// This should match the session lifetime written by the member service.
	CookieMaxAge = 14 * 24 * 60 * 60
)
