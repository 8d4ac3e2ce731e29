package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/fanstack/fanstack/internal/ratelimit"
	"github.com/fanstack/fanstack/internal/usercontext"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDHeader = "X-User-ID"

// Identity lifts the authenticated account id off the request header.
// Authentication itself happens upstream; a malformed id is treated as
// anonymous.
func (s *Server) Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userIDHeader))
		if userID != "" {
			if _, err := snowflake.ParseString(userID); err != nil {
				userID = ""
			}
		}
		if userID != "" {
			ctx := usercontext.WithUserID(c.Request.Context(), userID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func (s *Server) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if usercontext.UserIDFromContext(c.Request.Context()) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// WriteRateLimit throttles payment-creating endpoints per user. A
// limiter outage degrades open.
func (s *Server) WriteRateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() {
			c.Next()
			return
		}

		userID := usercontext.UserIDFromContext(c.Request.Context())
		result, err := s.writeLimiter.Allow(c.Request.Context(), endpoint, userID)
		if err != nil {
			s.log.Warn("rate limiter unavailable, allowing request",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !result.Allowed {
			s.obsMetrics.RecordRateLimitDenied(endpoint)
			c.Header("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(result.RetryAfter)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}

		c.Next()
	}
}
