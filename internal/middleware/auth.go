package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

const adminKeyHeader = "X-Admin-Key"

// RequireAdminKey guards tenant-provisioning endpoints. keyHash is a bcrypt
// hash of the admin API key; an empty hash disables the routes entirely.
func RequireAdminKey(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.Error(w, "admin access disabled", http.StatusForbidden)
				return
			}
			key := r.Header.Get(adminKeyHeader)
			if key == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
