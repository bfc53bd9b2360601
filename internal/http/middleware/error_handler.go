package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/translation-kpi/internal/interface/http/response"
	"github.com/ignatzorin/translation-kpi/internal/logger"
	"github.com/ignatzorin/translation-kpi/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки, добавленные через c.Error, централизованно.
// AppError отдаётся клиенту как есть, остальное маскируется.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		entry := logger.Log.WithFields(logrus.Fields{
			"error":  err.Error(),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
		if apperror.IsValidation(err) || apperror.IsNotFound(err) || apperror.IsConflict(err) || apperror.IsForbidden(err) {
			entry.Info("Request rejected")
		} else {
			entry.Error("Request error")
		}

		response.Error(c, err)
	}
}
