/*
Package limiter provides per-client rate limiting for the UI bridge.

Each client address gets its own token bucket (rate.Limiter). Idle buckets are
swept periodically until the limiter's context ends.
*/
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatsync/internal/pkg/errs"
	"chatsync/internal/pkg/logx"
	"chatsync/internal/pkg/resp"
)

// sweepInterval is how often idle buckets are dropped.
const sweepInterval = 3 * time.Minute

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int
}

// NewIPRateLimiter returns a limiter allowing r events per second with bursts of b.
// Its sweeper stops when ctx is done.
func NewIPRateLimiter(ctx context.Context, r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.sweep(ctx)

	return i
}

// Allow consumes a token from key's bucket, creating the bucket on first use.
func (i *IPRateLimiter) Allow(key string) bool {
	i.mu.Lock()
	limiter, ok := i.limits[key]
	if !ok {
		limiter = rate.NewLimiter(i.r, i.b)
		i.limits[key] = limiter
	}
	i.mu.Unlock()

	return limiter.Allow()
}

// sweep drops buckets that have refilled completely, i.e. clients gone quiet.
func (i *IPRateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			i.mu.Lock()
			removed := 0
			for key, limiter := range i.limits {
				if limiter.TokensAt(now) >= float64(limiter.Burst()) {
					delete(i.limits, key)
					removed++
				}
			}
			remaining := len(i.limits)
			i.mu.Unlock()

			if removed > 0 {
				logx.Debug("Rate limiter sweep", "removed", removed, "remaining", remaining)
			}
		}
	}
}

// Middleware rejects requests over the limit with ErrRateLimitExceeded.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !i.Allow(ip) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
