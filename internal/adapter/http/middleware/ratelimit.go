package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redisStore "recharge-store/internal/adapter/storage/redis"
	"recharge-store/internal/metrics"
	"recharge-store/pkg/apperror"
	"recharge-store/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Rate limit groups.
const (
	RuleGlobal   = "global"
	RuleAuth     = "auth"
	RuleOrders   = "orders"
	RulePayments = "payments"
)

const rateLimitWindow = 15 * time.Minute

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitStore counts requests per key and window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*redisStore.RateLimitResult, error)
}

// DefaultRateLimitRules returns the limits per endpoint group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		RuleGlobal:   {Limit: 100, Window: rateLimitWindow},
		RuleAuth:     {Limit: 5, Window: rateLimitWindow},
		RuleOrders:   {Limit: 20, Window: rateLimitWindow},
		RulePayments: {Limit: 10, Window: rateLimitWindow},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Store failures let the request through.
func RateLimiter(store RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", group, extractIdentifier(c))

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := result.RetryAfter(time.Now())
			c.Header("Retry-After", strconv.FormatInt(int64(retryAfter/time.Second), 10))
			metrics.RateLimited.WithLabelValues(group).Inc()
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys authenticated requests by user and the rest by client IP.
func extractIdentifier(c *gin.Context) string {
	if actor, ok := ActorFrom(c); ok {
		return "user:" + actor.UserID.String()
	}
	return "ip:" + c.ClientIP()
}
