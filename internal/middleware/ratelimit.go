package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"aitale-server/internal/models"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisRateLimitStore хранит счетчики в Redis, чтобы лимит был общим для всех реплик.
func NewRedisRateLimitStore(client *redis.Client, window time.Duration, limit uint) ratelimit.Store {
	return ratelimit.RedisStore(&ratelimit.RedisOptions{
		RedisClient: client,
		Rate:        window,
		Limit:       limit,
	})
}

// RateLimit ограничивает число запросов с одного IP.
func RateLimit(store ratelimit.Store, log *zap.Logger) gin.HandlerFunc {
	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
			retryAfter := time.Until(info.ResetTime)
			log.Warn("Rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
				zap.Time("resetTime", info.ResetTime),
			)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Code:    models.ErrCodeTooManyRequests,
				Message: "Too many requests. Try again in " + retryAfter.Round(time.Second).String(),
			})
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}
