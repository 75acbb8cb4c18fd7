package server

import (
	"time"

	"sjsage522/flooringscraper/logger"

	"github.com/gin-gonic/gin"
)

// LoggerMiddleware logs each request through the component logger
func LoggerMiddleware() gin.HandlerFunc {
	log := logger.ForServer()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Request")
	}
}

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.Recovery()
}
