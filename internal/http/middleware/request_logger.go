package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/translation-kpi/internal/logger"
)

// RequestLogger пишет в лог каждый запрос с длительностью и статусом.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"duration": time.Since(start).String(),
		}
		if actor, ok := ActorFromContext(c); ok {
			fields["user_id"] = actor.UserID
			fields["role"] = actor.Role
		}
		logger.Log.WithFields(fields).Debug("HTTP request")
	}
}
