package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mhenrik/skillrank/internal/httputil"
)

// RequireCronSecret authenticates the external scheduler on the internal
// job trigger endpoints. The comparison is constant-time so response
// timing leaks nothing about the secret.
func RequireCronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httputil.Unauthorized(w, "Trigger secret not configured")
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				httputil.Unauthorized(w, "Invalid trigger credential")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
