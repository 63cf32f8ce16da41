package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"civicsync/models"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const issueLimitWindow = 24 * time.Hour

// IssueRateLimiter caps how many issues one account may submit per day. It
// must run after AuthMiddleware.
func IssueRateLimiter(rdb redis.Cmdable, prefix string, limit int, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		userID := c.GetString(userIDKey)
		if userID == "" {
			abort(c, http.StatusUnauthorized, models.KindAuthorization, "User not authenticated")
			return
		}

		ctx := c.Request.Context()
		userKey := prefix + ":" + userID

		count, err := rdb.Incr(ctx, userKey).Result()
		if err != nil {
			logger.Error("rate limiter incr", "key", userKey, "error", err)
			abort(c, http.StatusBadGateway, models.KindUpstream, "rate limiter unavailable")
			return
		}

		// the window starts with the first submission
		if count == 1 {
			if err := rdb.Expire(ctx, userKey, issueLimitWindow).Err(); err != nil {
				logger.Error("rate limiter expire", "key", userKey, "error", err)
				abort(c, http.StatusBadGateway, models.KindUpstream, "rate limiter unavailable")
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := rdb.TTL(ctx, userKey).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"kind":        "rate_limited",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
