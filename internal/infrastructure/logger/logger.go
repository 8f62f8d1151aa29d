package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. format "json" selects the production
// encoder, anything else the console encoder.
func NewLogger(levelStr, format string) *zap.Logger {
	level := zapcore.InfoLevel
	switch levelStr {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// CronAdapter satisfies the robfig/cron Logger interface.
type CronAdapter struct {
	l *zap.SugaredLogger
}

func NewCronAdapter(l *zap.Logger) CronAdapter {
	return CronAdapter{l: l.Sugar()}
}

func (a CronAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.l.Debugw(msg, keysAndValues...)
}

func (a CronAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
