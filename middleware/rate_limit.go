package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/cppla/eduboard/config"
	"github.com/cppla/eduboard/utils"
)

const (
	limiterIdle = 5 * time.Minute
	sweepEvery  = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	every rate.Limit
	burst int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

func newIPLimiter(perMinute int) *ipLimiter {
	perMinute = max(perMinute, 1)
	return &ipLimiter{
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		visitors: make(map[string]*visitor),
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= sweepEvery {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdle {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimitMiddleware applies the global per-IP token bucket.
func RateLimitMiddleware() gin.HandlerFunc {
	return RateLimit(config.Get().RateLimitPerMinute)
}

// StrictRateLimit guards endpoints that cost money or reach people (SMS, contact mail).
func StrictRateLimit() gin.HandlerFunc {
	return RateLimit(config.Get().RateLimitPerMinute / 6)
}

// RateLimit allows perMinute requests per client IP with a burst of half that.
// Every call builds an independent set of buckets.
func RateLimit(perMinute int) gin.HandlerFunc {
	l := newIPLimiter(perMinute)
	return func(ctx *gin.Context) {
		if !l.allow(ctx.ClientIP(), time.Now()) {
			utils.AbortReason(ctx, http.StatusTooManyRequests, 42901, utils.ReasonTooManyRequests)
			return
		}
		ctx.Next()
	}
}
