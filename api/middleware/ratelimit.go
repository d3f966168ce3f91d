package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/tgsearch/config"
	"github.com/use-agent/tgsearch/limiter"
	"github.com/use-agent/tgsearch/models"
)

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware. Throttled requests get 429 with a Retry-After header.
//
// Identities unused for 1 hour are evicted every 5 minutes.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	buckets := limiter.New(cfg.RequestsPerSecond, cfg.Burst, time.Hour)
	go buckets.SweepEvery(5*time.Minute, nil)

	return func(c *gin.Context) {
		// Prefer API key as identity (set by auth middleware); fall back to IP.
		identity := c.GetString(ContextKeyAPIKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !buckets.Allow(identity) {
			wait := buckets.RetryAfter(identity)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.SearchResponse{
				Success: false,
				Results: []models.ResultRecord{},
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}

		c.Next()
	}
}
