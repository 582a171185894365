package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/questmap/treasure-hunt/pkg/common"
	"github.com/questmap/treasure-hunt/pkg/config"
	"github.com/questmap/treasure-hunt/pkg/logger"
	"go.uber.org/zap"
)

// window script: atomically increments the counter for the current window
// and sets its expiry on first use. Returns the post-increment count.
const windowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`

// Limiter enforces a fixed-window request limit backed by Redis. This guards
// the HTTP surface; the submission pre-validator applies its own
// history-based limits independently.
type Limiter struct {
	client redis.Cmdable
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// NewLimiter creates a limiter from the provided configuration.
func NewLimiter(client redis.Cmdable, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(windowScript),
		now:    time.Now,
	}
}

// WithNow overrides the limiter's clock. Intended for tests.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow reports whether the identified caller may proceed. On Redis errors
// the limiter fails open so that a cache outage does not take down the
// submission path.
func (l *Limiter) Allow(ctx context.Context, identity string) (bool, error) {
	if !l.cfg.Enabled {
		return true, nil
	}

	window := int64(l.cfg.WindowSeconds)
	bucket := l.now().Unix() / window
	key := fmt.Sprintf("%s:%s:%d", l.cfg.RedisPrefix, identity, bucket)

	count, err := l.script.Run(ctx, l.client, []string{key}, window).Int64()
	if err != nil {
		logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return true, err
	}

	return count <= int64(l.cfg.Limit), nil
}

// Middleware returns a gin middleware enforcing the limit per authenticated
// user, falling back to client IP for anonymous requests.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()
		if id, exists := c.Get("user_id"); exists {
			identity = fmt.Sprintf("%v", id)
		}

		allowed, _ := l.Allow(c.Request.Context(), identity)
		if !allowed {
			common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}
