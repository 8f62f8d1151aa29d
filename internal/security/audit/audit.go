package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RequestIDKey carries the request id set by the request logger.
type RequestIDKey struct{}

type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.With(zap.String("component", "audit"))}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	requestID, _ := ctx.Value(RequestIDKey{}).(string)

	al.logger.Info("audit",
		zap.String("action", action),
		zap.String("resource", resource),
		zap.String("resource_id", resourceID),
		zap.String("user_id", userID),
		zap.String("status", status),
		zap.String("details", details),
		zap.String("request_id", requestID),
		zap.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}
