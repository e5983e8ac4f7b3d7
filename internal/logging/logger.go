package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/EugeneTurkin/fav-movies/internal/config"
)

const serviceName = "fav-movies"

// New creates the structured logger used across the service. The returned
// entry already carries the service and environment fields.
func New(cfg *config.Config) *logrus.Entry {
	return NewWithOutput(cfg, os.Stdout)
}

// NewWithOutput is New writing to w.
func NewWithOutput(cfg *config.Config, w io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(w)

	// Set output format
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "msg",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	// Set log level
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.WithField("level", cfg.Log.Level).Warn("invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger.WithFields(logrus.Fields{
		"service":     serviceName,
		"environment": cfg.Env,
	})
}
