package handlers

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/libris-lms/apiserver/config"
	"github.com/libris-lms/apiserver/internal/logging"
	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 5 * time.Minute

// KeyFunc extracts the rate-limit bucket key from a request.
type KeyFunc func(*http.Request) string

// IPKey keys requests by client IP. It trusts RemoteAddr only; proxy headers
// are resolved earlier by middleware.RealIP.
func IPKey(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + ip
}

// UserKey keys requests by authenticated user and falls back to the client IP
// for anonymous requests.
func UserKey(r *http.Request) string {
	if userID, err := userIDFromContext(r.Context()); err == nil {
		return "user:" + strconv.Itoa(userID)
	}
	return IPKey(r)
}

type rateLimiter struct {
	limiters    sync.Map // map[string]*rate.Limiter
	rate        rate.Limit
	burst       int
	mu          sync.Mutex
	lastCleanup time.Time
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	actual, _ := rl.limiters.LoadOrStore(key, rate.NewLimiter(rl.rate, rl.burst))
	rl.maybeCleanup()
	return actual.(*rate.Limiter)
}

// maybeCleanup drops limiters whose buckets have refilled, at most once per
// cleanup interval.
func (rl *rateLimiter) maybeCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastCleanup) < limiterCleanupInterval {
		return
	}
	rl.lastCleanup = time.Now()

	rl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(rl.burst) {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit allows limit.Requests per limit.Window for each key, all of which
// may be spent at once. Rejected requests get 429 with a Retry-After header.
// A non-positive limit disables the middleware.
func RateLimit(limit config.RateLimit, key KeyFunc) Middleware {
	if limit.Requests <= 0 || limit.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	rl := &rateLimiter{
		rate:        rate.Limit(float64(limit.Requests) / limit.Window.Seconds()),
		burst:       limit.Requests,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucket := key(r)
			limiter := rl.limiter(bucket)
			if limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()
			retryAfter := max(int(delay.Seconds()), 1)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
			w.Header().Set("X-RateLimit-Window", limit.Window.String())

			logging.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", bucket,
				"path", r.URL.Path,
				"retry_after", retryAfter,
			)
			writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
		})
	}
}
