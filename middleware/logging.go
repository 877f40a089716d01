package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nebulium/authcore/consts"
	"github.com/nebulium/authcore/ctxutil"
	"github.com/nebulium/authcore/logging/logger"
)

// Trace ensures every request carries a trace ID, echoing it back in the
// response headers.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(consts.TraceKey); incoming != "" {
			ctx = ctxutil.SetValue(ctx, consts.TraceKey, incoming)
		}
		ctx, traceID := ctxutil.EnsureTraceID(ctx)
		ctx = ctxutil.SetClientIP(ctx, c.ClientIP())
		ctx = ctxutil.SetUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Writer.Header().Set(consts.TraceKey, traceID)
		c.Next()
	}
}

// Logging records one line per request with latency and status.
func Logging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info(c.Request.Context(), "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
