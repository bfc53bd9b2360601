package logger

import (
	"github.com/sirupsen/logrus"
)

// Log по умолчанию инициализирован, чтобы пакеты и тесты могли писать логи без Init.
var Log = logrus.New()

// Init инициализирует структурированный логгер.
func Init(level string) {
	Log = logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	// Используем JSON формат для production, text для development
	Log.SetFormatter(&logrus.JSONFormatter{})
}

// SetTextFormatter устанавливает текстовый формат логов (для development).
func SetTextFormatter() {
	if Log != nil {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

// WithProject возвращает запись лога с полем project_id.
func WithProject(projectID interface{}) *logrus.Entry {
	return Log.WithField("project_id", projectID)
}

// WithMonth возвращает запись лога с полем month.
func WithMonth(month string) *logrus.Entry {
	return Log.WithField("month", month)
}
