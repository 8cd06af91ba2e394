package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/aiblog/config"
	"github.com/cppla/aiblog/utils"
)

const limiterIdleTTL = 5 * time.Minute

type rateLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

var (
	limiters   = map[string]*rateLimiter{}
	limitersMu sync.Mutex
)

// RateLimitMiddleware applies a per IP token bucket using the configured
// requests per minute. Each scope has its own buckets.
func RateLimitMiddleware(scope string) gin.HandlerFunc {
	return RateLimitPerMinute(scope, config.Get().RateLimitPerMinute)
}

// ContextThrottledKey is set by SoftRateLimitPerMinute on over-budget requests.
const ContextThrottledKey = "throttled"

// RateLimitPerMinute is RateLimitMiddleware with an explicit budget.
func RateLimitPerMinute(scope string, perMinute int) gin.HandlerFunc {
	r, burst := budget(perMinute)
	return func(ctx *gin.Context) {
		limiter := getLimiter(scope+"|"+ClientIP(ctx), r, burst)
		if !limiter.Allow() {
			ctx.Header("Retry-After", "60")
			utils.Error(ctx, http.StatusTooManyRequests, 42901, "rate limit exceeded")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// SoftRateLimitPerMinute never rejects; over-budget requests are flagged with
// ContextThrottledKey and the handler decides what to skip.
func SoftRateLimitPerMinute(scope string, perMinute int) gin.HandlerFunc {
	r, burst := budget(perMinute)
	return func(ctx *gin.Context) {
		limiter := getLimiter(scope+"|"+ClientIP(ctx), r, burst)
		if !limiter.Allow() {
			ctx.Set(ContextThrottledKey, true)
		}
		ctx.Next()
	}
}

// Throttled reports whether SoftRateLimitPerMinute flagged the request.
func Throttled(ctx *gin.Context) bool {
	return ctx.GetBool(ContextThrottledKey)
}

func budget(perMinute int) (rate.Limit, int) {
	perMinute = max(perMinute, 1)
	// burst is half the per-minute budget
	return rate.Every(time.Minute / time.Duration(perMinute)), max(perMinute/2, 1)
}

func getLimiter(key string, limit rate.Limit, burst int) *rate.Limiter {
	limitersMu.Lock()
	defer limitersMu.Unlock()

	now := time.Now()
	cleanupExpiredLimitersLocked(now)

	if l, ok := limiters[key]; ok {
		l.expires = now.Add(limiterIdleTTL)
		return l.limiter
	}

	l := &rateLimiter{
		limiter: rate.NewLimiter(limit, burst),
		expires: now.Add(limiterIdleTTL),
	}
	limiters[key] = l
	return l.limiter
}

func cleanupExpiredLimitersLocked(now time.Time) {
	for key, l := range limiters {
		if now.After(l.expires) {
			delete(limiters, key)
		}
	}
}
