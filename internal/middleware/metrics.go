package middleware

import (
	"crypto/subtle"
	"net/http"
)

// MetricsAuthMiddleware guards the Prometheus scrape endpoint with basic
// auth. Leaving both credentials empty disables the check, which is the
// expected setup when the endpoint is only reachable inside the cluster.
type MetricsAuthMiddleware struct {
	username []byte
	password []byte
	enabled  bool
}

func NewMetricsAuthMiddleware(username, password string) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		username: []byte(username),
		password: []byte(password),
		enabled:  username != "" || password != "",
	}
}

// Handler wraps next with the basic auth check.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !m.credentialsMatch(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *MetricsAuthMiddleware) credentialsMatch(user, pass string) bool {
	// Evaluate both comparisons so the timing does not reveal which
	// credential was wrong.
	userMatch := subtle.ConstantTimeCompare([]byte(user), m.username) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(pass), m.password) == 1
	return userMatch && passMatch
}
