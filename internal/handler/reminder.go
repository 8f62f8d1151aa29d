package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/worker"
)

// ReminderRunner is the dispatcher entry point for manual runs.
type ReminderRunner interface {
	Run(ctx context.Context, trigger string) (*worker.RunReport, error)
}

// ReminderHandler lets an admin trigger the meeting reminder run.
type ReminderHandler struct {
	runner ReminderRunner
	logger *zap.Logger
}

func NewReminderHandler(runner ReminderRunner, logger *zap.Logger) *ReminderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderHandler{runner: runner, logger: logger.With(zap.String("handler", "reminder"))}
}

// Run handles POST /api/admin/reminders/run
func (h *ReminderHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.runner.Run(r.Context(), worker.TriggerManual)
	if err != nil {
		writeError(w, h.logger, err, "", "Reminder run failed")
		return
	}
	writeData(w, http.StatusOK, report, "Reminder run completed")
}
