package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/groundwork-cm/groundwork-backend/internal/tenancy"
)

// TenantLimiter hands out one token bucket per tenant. Idle buckets age out
// of the cache and start full again.
type TenantLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

func NewTenantLimiter(rps float64, burst int) *TenantLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TenantLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](4096, nil, 10*time.Minute),
	}
}

func (l *TenantLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(key, lim)
	return lim
}

// Allow reports whether a request for key may proceed now.
func (l *TenantLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// RateLimit must run after tenant resolution. Requests without a tenant pass.
func RateLimit(l *TenantLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := tenancy.ID(c)
		if id == "" || l.limit <= 0 {
			c.Next()
			return
		}
		if !l.Allow(id) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
