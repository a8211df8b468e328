package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/console/internal/infrastructure/logging"
)

// RequestLogger logs every request through zap once it completes.
func RequestLogger(logger *logging.Logger) gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			log.Warn("Request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		log.Debug("Request completed", fields...)
	}
}
