// Package auth guards the proxy and admin surfaces with a single static
// token. No token configured means open access on localhost.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/clawinfra/clawroute/internal/httputil"
)

// Middleware authenticates requests against the configured token, read
// per-request so config reloads take effect. The token is accepted as a
// Bearer header (case-insensitive scheme) or a ?token= query parameter.
func Middleware(token func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := token()
			if want == "" {
				next.ServeHTTP(w, r)
				return
			}

			if got, ok := extractToken(r); ok && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			httputil.WriteUnauthorized(w, "Missing or invalid token. Use: Authorization: Bearer <token>")
		})
	}
}

func extractToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1]), true
		}
	}
	if q := r.URL.Query().Get("token"); q != "" {
		return q, true
	}
	return "", false
}
