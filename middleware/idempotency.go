// Package middleware holds transport-level middleware. The Redis idempotency
// cache here is a fast path for retried HTTP requests; the durable
// at-most-once guarantee lives in the transfer engine, not here.
package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yashasviy/transaction-ledger-api/logger"
)

const (
	// IdempotencyHeader is the standard HTTP header for idempotency keys.
	IdempotencyHeader = "Idempotency-Key"

	// lockTimeout bounds the in-flight marker so a crashed request cannot
	// wedge its key forever.
	lockTimeout = 10 * time.Second

	cacheKeyPrefix = "idempotency:"
	lockKeyPrefix  = "lock:"
)

// responseRecorder captures status and body so 2xx responses can be cached.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (rw *responseRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseRecorder) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// Idempotency replays cached responses for repeated Idempotency-Key headers
// and rejects concurrent duplicates while the first request is in flight.
// Requests without the header pass straight through.
func Idempotency(rdb *redis.Client, ttl time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	log = log.With("component", "idempotency")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			cacheKey := cacheKeyPrefix + key
			lockKey := lockKeyPrefix + key

			if cached, err := rdb.Get(ctx, cacheKey).Result(); err == nil {
				log.Debug("cache hit", "key", key)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				_, _ = w.Write([]byte(cached))
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "processing", lockTimeout).Result()
			if err != nil {
				// Redis being down must not block transfers; the
				// engine's durable gate still holds.
				log.Warn("lock acquisition failed, bypassing cache", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				log.Info("concurrent duplicate rejected", "key", key)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"conflict","message":"a request with this idempotency key is in flight"}`))
				return
			}
			defer func() {
				// The request context may already be canceled (client
				// gone); releasing on it would wedge the key until the
				// lock TTL expires.
				if err := rdb.Del(context.Background(), lockKey).Err(); err != nil {
					log.Warn("lock release failed", "key", key, "error", err)
				}
			}()

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= 200 && rec.statusCode < 300 {
				if err := rdb.Set(ctx, cacheKey, rec.body.String(), ttl).Err(); err != nil {
					log.Warn("response cache write failed", "key", key, "error", err)
				}
			}
		})
	}
}
