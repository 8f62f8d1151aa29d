package handler

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/service"
)

// PushHandler registers browser push subscriptions.
type PushHandler struct {
	subs      *service.SubscriptionService
	publicKey string
	logger    *zap.Logger
}

// NewPushHandler creates a push handler. publicKey is the VAPID application
// server key handed to browsers.
func NewPushHandler(subs *service.SubscriptionService, publicKey string, logger *zap.Logger) *PushHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushHandler{subs: subs, publicKey: publicKey, logger: logger.With(zap.String("handler", "push"))}
}

// Subscribe handles POST /api/push/subscribe. Registering a known endpoint
// again still answers 201.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("push subscription attempt", zap.String("origin", r.Header.Get("Origin")))
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Subscription failed"})
		return
	}
	if _, err := h.subs.Subscribe(r.Context(), body); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message})
			return
		}
		h.logger.Error("subscription failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Subscription failed"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Subscribed successfully"})
}

// PublicKey handles GET /api/push/vapid-public-key
func (h *PushHandler) PublicKey(w http.ResponseWriter, _ *http.Request) {
	if h.publicKey == "" {
		writeMessage(w, http.StatusServiceUnavailable, "Push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": h.publicKey})
}
