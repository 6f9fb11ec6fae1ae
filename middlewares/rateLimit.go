package middlewares

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/marutilaminates/laminates_backend/config"
	"github.com/marutilaminates/laminates_backend/utils"
)

const CodeRateLimited = "RATE_LIMITED"

// RateLimit returns a per-client-IP limiter. While Redis is connected the
// count is shared across instances; otherwise it is kept in memory.
func RateLimit(cfg config.RateLimitConfig, logger *logrus.Logger) gin.HandlerFunc {
	local := MemoryRateLimit(cfg.Limit, cfg.Window)
	var (
		once   sync.Once
		shared *RedisRateLimiter
	)
	return func(c *gin.Context) {
		client := config.GetRedisDB()
		if client == nil {
			local(c)
			return
		}
		once.Do(func() { shared = NewRedisRateLimiter(client, cfg.Limit, cfg.Window, logger) })
		shared.Middleware(c)
	}
}

func MemoryRateLimit(limit int64, window time.Duration) gin.HandlerFunc {
	rate := limiter.Rate{Period: window, Limit: limit}
	instance := limiter.New(memory.NewStore(), rate)
	return mgin.NewMiddleware(instance,
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			limitReached(c, window)
		}),
	)
}

func limitReached(c *gin.Context, window time.Duration) {
	utils.RespondCode(c, http.StatusTooManyRequests, CodeRateLimited,
		fmt.Sprintf("rate limit exceeded, try again in %d seconds", int(window.Seconds())), nil)
}

// RedisRateLimiter is a fixed window counter keyed by client IP.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	logger *logrus.Logger
}

func NewRedisRateLimiter(client *redis.Client, limit int64, window time.Duration, logger *logrus.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, limit: limit, window: window, logger: logger}
}

// Middleware lets requests through when Redis errors.
func (rl *RedisRateLimiter) Middleware(c *gin.Context) {
	key := "ratelimit:" + c.ClientIP()
	ctx := c.Request.Context()

	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		config.LogWarn(rl.logger, "middlewares", "RedisRateLimiter.Middleware", "Incr", key, err)
		c.Next()
		return
	}
	if count == 1 {
		if err := rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			config.LogWarn(rl.logger, "middlewares", "RedisRateLimiter.Middleware", "Expire", key, err)
		}
	}
	if count > rl.limit {
		limitReached(c, rl.window)
		return
	}
	c.Next()
}
