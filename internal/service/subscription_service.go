package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/validation"
)

// SubscriptionService registers browser push endpoints.
type SubscriptionService struct {
	repo   domain.SubscriptionRepository
	logger *zap.Logger
}

func NewSubscriptionService(repo domain.SubscriptionRepository, logger *zap.Logger) *SubscriptionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionService{repo: repo, logger: logger.With(zap.String("component", "subscription_service"))}
}

// Subscribe stores the endpoint unless it is already known. It reports
// whether a new row was created.
func (s *SubscriptionService) Subscribe(ctx context.Context, data []byte) (bool, error) {
	if err := validation.Validate(validation.Subscription, data); err != nil {
		return false, err
	}
	var sub domain.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return false, domain.Invalid("Invalid subscription")
	}
	sub.ID = ""

	created, err := s.repo.CreateIfAbsent(ctx, &sub)
	if err != nil {
		return false, err
	}
	if created {
		s.logger.Info("push subscription registered", zap.String("id", sub.ID))
	} else {
		s.logger.Debug("push subscription already registered")
	}
	return created, nil
}
