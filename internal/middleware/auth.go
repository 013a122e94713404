package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
)

// Role is the access level granted by the presented API key.
type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
)

type contextKey string

const roleContextKey contextKey = "role"

// APIKeys holds the two configured keys: the read-write key grants both
// roles, the read-only key grants reader only.
type APIKeys struct {
	ReadWrite string
	ReadOnly  string
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// APIKeyAuth authenticates requests by the X-API-Key header and stores the
// granted role in the request context.
func APIKeyAuth(keys APIKeys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				http.Error(w, "X-API-Key header required", http.StatusUnauthorized)
				return
			}

			var role Role
			switch {
			case keys.ReadWrite != "" && equal(key, keys.ReadWrite):
				role = RoleWriter
			case keys.ReadOnly != "" && equal(key, keys.ReadOnly):
				role = RoleReader
			default:
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), roleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWriter gates mutating endpoints: a reader key gets 403.
func RequireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) != RoleWriter {
			http.Error(w, "Write access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RoleFromContext returns the authenticated role, or the empty Role when
// the request never passed APIKeyAuth.
func RoleFromContext(ctx context.Context) Role {
	role, _ := ctx.Value(roleContextKey).(Role)
	return role
}
