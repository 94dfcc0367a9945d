package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fintrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fintrack/internal/observability/metrics"
	"github.com/smallbiznis/fintrack/internal/ratelimit"
	"go.uber.org/zap"
)

const rateLimitReasonClientRate = "client-rate"

// RateLimit charges each client IP against limiter. Limiters with
// SkipSuccessful are only charged after the handler failed, so the check
// before the handler is a peek. A store failure lets the request through.
func (s *Server) RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		client := c.ClientIP()
		endpoint := normalizeRateLimitEndpoint(c)

		var (
			res ratelimit.Result
			err error
		)
		if limiter.SkipSuccessful {
			res, err = limiter.Peek(ctx, client)
		} else {
			res, err = limiter.Allow(ctx, client)
		}
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit check failed",
				zap.String("limiter", limiter.Name()),
				zap.Error(err),
			)
			c.Next()
			return
		}

		setRateLimitHeaders(c, res)
		if !res.Allowed {
			denyRateLimit(c, limiter.Name(), endpoint, res, s.obsMetrics)
			return
		}
		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)

		c.Next()

		if limiter.SkipSuccessful && requestFailed(c) {
			if _, err := limiter.Allow(ctx, client); err != nil {
				logger.FromContext(ctx).Warn("rate limit charge failed",
					zap.String("limiter", limiter.Name()),
					zap.Error(err),
				)
			}
		}
	}
}

func denyRateLimit(c *gin.Context, name, endpoint string, res ratelimit.Result, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("rate limit exceeded",
		zap.String("limiter", name),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, rateLimitReasonClientRate, metrics)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(res)))
	AbortWithError(c, ErrRateLimited)
}

// requestFailed also covers errors the error middleware has not rendered yet.
func requestFailed(c *gin.Context) bool {
	if !c.Writer.Written() && c.Errors.Last() != nil {
		return true
	}
	return c.Writer.Status() >= http.StatusBadRequest
}

func setRateLimitHeaders(c *gin.Context, res ratelimit.Result) {
	c.Header("RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("RateLimit-Remaining", strconv.Itoa(res.Remaining))
}

func retryAfterSeconds(res ratelimit.Result) int {
	secs := int(math.Ceil(res.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
