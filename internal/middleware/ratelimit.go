package middleware

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/cyblex/backend/pkg/response"
)

const limiterPrefix = "cyblex:limiter"

// NewLimiterStore returns a Redis-backed store shared across instances,
// or an in-process store when client is nil.
func NewLimiterStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: limiterPrefix}), nil
	}
	return sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: limiterPrefix})
}

// RateLimit limits requests per client IP and route name using a rate such as "10-M".
func RateLimit(store limiter.Store, formatted, name string, logger *zap.Logger) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", name, err)
	}
	lim := limiter.New(store, rate)
	return mgin.NewMiddleware(lim,
		mgin.WithKeyGetter(func(c *gin.Context) string {
			return name + ":" + c.ClientIP()
		}),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			logger.Warn("rate limit reached", zap.String("limit", name), zap.String("client_ip", c.ClientIP()))
			c.Header("Retry-After", strconv.FormatInt(int64(rate.Period.Seconds()), 10))
			response.TooManyRequests(c, "Too many requests, please try again later")
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// fail open on store errors
			logger.Error("rate limiter store error", zap.Error(err))
			c.Next()
		}),
	), nil
}
