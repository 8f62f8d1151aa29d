package webpush

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpushgo "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/pkg/config"
)

const defaultTTL = 24 * 60 * 60

// Sender delivers Web Push notifications signed with the VAPID key pair.
type Sender struct {
	publicKey  string
	privateKey string
	subscriber string
	client     *http.Client
	logger     *zap.Logger
}

// NewSender builds a sender. The library adds the mailto: scheme itself.
func NewSender(cfg config.PushConfig, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: strings.TrimPrefix(cfg.Subject, "mailto:"),
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     logger.With(zap.String("component", "webpush")),
	}
}

// Configured reports whether VAPID keys are present.
func (s *Sender) Configured() bool {
	return s.publicKey != "" && s.privateKey != ""
}

// Send pushes payload to sub. 404 and 410 map to domain.ErrSubscriptionGone.
func (s *Sender) Send(ctx context.Context, sub *domain.Subscription, payload []byte) error {
	resp, err := webpushgo.SendNotificationWithContext(ctx, payload, &webpushgo.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpushgo.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}, &webpushgo.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             defaultTTL,
		Urgency:         webpushgo.UrgencyNormal,
	})
	if err != nil {
		return fmt.Errorf("send push to %s: %w", sub.ID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("push endpoint returned %d: %w", resp.StatusCode, domain.ErrSubscriptionGone)
	case resp.StatusCode >= 400:
		return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
	}
	return nil
}
