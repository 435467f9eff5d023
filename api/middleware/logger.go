package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/pkg/logger"
)

// Logger returns a gin middleware for logging
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		log.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("fetch_id", c.Writer.Header().Get("X-Fetch-ID")),
		)
	}
}

// LoggerWithAdapter logs every request to the general log and server-side
// failures to the error log as well
func LoggerWithAdapter(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	access := Logger(logAdapter.General())
	return func(c *gin.Context) {
		access(c)

		if status := c.Writer.Status(); status >= 500 {
			logAdapter.LogError("HTTP error response",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", status),
				zap.String("client_ip", c.ClientIP()),
				zap.String("user_agent", c.Request.UserAgent()),
			)
		}
	}
}
