package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/yt-fetch-go/pkg/logger"
)

// Recovery returns a gin middleware for panic recovery
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return recovery(func(c *gin.Context, err interface{}) {
		log.Error("Panic recovered",
			zap.Any("error", err),
			zap.String("path", c.Request.URL.Path),
		)
	})
}

// RecoveryWithAdapter returns a gin middleware for panic recovery using LoggerAdapter
func RecoveryWithAdapter(logAdapter *logger.LoggerAdapter) gin.HandlerFunc {
	return recovery(func(c *gin.Context, err interface{}) {
		logAdapter.LogError("Panic recovered",
			zap.Any("error", err),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.String("client_ip", c.ClientIP()),
			zap.Stack("stack"),
		)
	})
}

func recovery(report func(c *gin.Context, err interface{})) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				report(c, err)
				if c.Writer.Written() {
					// headers already sent
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
					"kind":  "internal",
				})
			}
		}()
		c.Next()
	}
}
