package middleware

import (
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimit is a fixed-window per-key limiter backed by Redis INCR/EXPIRE.
// Requests are bucketed by API key when present, falling back to the remote
// address. A nil client disables limiting; Redis errors fail open.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rdb == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.Header.Get("X-API-Key")
			if caller == "" {
				caller = r.RemoteAddr
			}
			key := "ratelimit:" + caller

			count, err := rdb.Incr(r.Context(), key).Result()
			if err != nil {
				zap.L().Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(r.Context(), key, window)
			}
			if count > int64(limit) {
				w.Header().Set("Retry-After", window.String())
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
