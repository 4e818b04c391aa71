package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

type LogrusLogger struct {
	log *logrus.Logger
}

func NewLogrusLogger(level string) Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return &LogrusLogger{log: log}
}

// NewLogrusLoggerFrom wraps an existing logrus logger.
func NewLogrusLoggerFrom(log *logrus.Logger) Logger {
	return &LogrusLogger{log: log}
}

func (l *LogrusLogger) Debug(msg string, fields map[string]any) {
	l.log.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, fields map[string]any) {
	l.log.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, fields map[string]any) {
	l.log.WithFields(logrus.Fields(fields)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, fields map[string]any) {
	l.log.WithFields(logrus.Fields(fields)).Error(msg)
}
