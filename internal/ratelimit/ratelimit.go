// Package ratelimit implements fixed-window request limiting keyed by action
// and client IP, backed by either the Postgres rate_limits table or Redis.
package ratelimit

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/azizikri/referral-claim/internal/metrics"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendNone     = "none"
)

type Limiter interface {
	// Allow records one hit for key and reports whether it fits the window.
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

type noop struct{}

func (noop) Allow(context.Context, string) (bool, error) { return true, nil }
func (noop) Window() time.Duration                       { return 0 }

func Noop() Limiter { return noop{} }

// Middleware rejects requests over the limit with 429. When the backend fails
// the request passes if failOpen is set and gets 503 otherwise.
func Middleware(action string, limiter Limiter, log *zap.Logger, failOpen bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := action + ":" + clientIP(r)
			ok, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("rate limiter error",
					zap.String("action", action),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Error(err))
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "rate limiter unavailable", http.StatusServiceUnavailable)
				return
			}
			if !ok {
				metrics.RateLimited.WithLabelValues(action).Inc()
				if window := limiter.Window(); window > 0 {
					w.Header().Set("Retry-After", retryAfter(window))
				}
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP relies on middleware.RealIP having already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

// retryAfter rounds up so sub-second windows never advertise 0.
func retryAfter(window time.Duration) string {
	return strconv.Itoa(int(math.Ceil(window.Seconds())))
}

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.UTC().Truncate(window)
}
