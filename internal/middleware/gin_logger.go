package middleware

import (
	"strconv"
	"time"

	"github.com/blanx-app/backend/internal/logger"
	"github.com/blanx-app/backend/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinLoggerMiddleware logs HTTP requests with structured fields and
// records the prometheus request metrics. Replaces gin.Logger.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		clientIP := c.ClientIP()

		c.Next()

		statusCode := c.Writer.Status()
		latency := time.Since(startTime)

		status := strconv.Itoa(statusCode)
		metrics.Get().HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.Get().HTTPRequestDuration.WithLabelValues(method, path, status).Observe(latency.Seconds())

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			logger.WithIP(clientIP),
			logger.WithStatus(statusCode),
			zap.Duration("latency", latency),
		}
		if requestID, ok := c.Get("request_id"); ok {
			if rID, ok := requestID.(string); ok {
				fields = append(fields, logger.WithRequestID(rID))
			}
		}

		switch {
		case statusCode >= 500:
			logger.Log.Error("request failed", fields...)
		case statusCode >= 400:
			logger.Log.Warn("request rejected", fields...)
		default:
			logger.Log.Info("request completed", fields...)
		}
	}
}
