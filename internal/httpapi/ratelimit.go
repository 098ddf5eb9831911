package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// rateLimitScript is a fixed-window counter: first hit in a window sets
// the expiry, and hits past the limit return 0.
const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

// RedisLimiter is a Redis-backed fixed-window Limiter. It fails open:
// Redis being unreachable never blocks requests.
type RedisLimiter struct {
	client *redis.Client
	script *redis.Script
}

// NewRedisLimiter creates a RedisLimiter. A nil client yields a nil
// limiter, which allows everything.
func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	if client == nil {
		return nil
	}
	return &RedisLimiter{
		client: client,
		script: redis.NewScript(rateLimitScript),
	}
}

// Allow implements Limiter.
func (l *RedisLimiter) Allow(key string, limit int, window time.Duration) bool {
	if l == nil || l.client == nil {
		return true
	}
	if key == "" || limit <= 0 || window <= 0 {
		return true
	}
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	allowed, err := l.script.Run(ctx, l.client, []string{key}, ttl, limit).Int64()
	if err != nil {
		return true
	}
	return allowed == 1
}

// rateLimit is a gin middleware limiting requests per client IP.
func rateLimit(limiter Limiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}
		if !limiter.Allow("rl:"+c.ClientIP(), limit, window) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
