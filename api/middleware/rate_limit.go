package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/trolleylabs/trolley-backend/api/responses"
	pkgerrors "github.com/trolleylabs/trolley-backend/pkg/errors"
	"github.com/trolleylabs/trolley-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimitPolicy defines the per-IP throttling parameters for the API.
type RateLimitPolicy struct {
	requests int
	window   time.Duration
}

// NewRateLimitPolicy builds a policy with the supplied window and limit.
func NewRateLimitPolicy(requests int, window time.Duration) RateLimitPolicy {
	return RateLimitPolicy{requests: requests, window: window}
}

func (p RateLimitPolicy) enabled() bool {
	return p.requests > 0 && p.window > 0
}

// RateLimit enforces a fixed-window request budget per client IP. A redis
// outage fails open: serving unthrottled beats serving 503s for a limiter.
func RateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ip := clientIP(r)
			if ip == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := store.FixedWindowAllow(ctx, "ip:"+ip, int64(policy.requests), policy.window)
			if err != nil {
				logError(ctx, logg, "rate limit check failed, allowing request", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"ip":             ip,
						"attempts":       count,
						"limit":          policy.requests,
						"window_seconds": int(policy.window.Seconds()),
					}), "rate limit exceeded")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
