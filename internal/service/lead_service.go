package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/internal/validation"
)

// LeadService is CRUD over sales leads.
type LeadService struct {
	repo   domain.LeadRepository
	logger *zap.Logger
}

func NewLeadService(repo domain.LeadRepository, logger *zap.Logger) *LeadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{repo: repo, logger: logger.With(zap.String("component", "lead_service"))}
}

// Create stores a new lead. Status defaults to New.
func (s *LeadService) Create(ctx context.Context, data []byte) (*domain.Lead, error) {
	if err := validation.Validate(validation.LeadCreate, data); err != nil {
		return nil, err
	}
	lead := &domain.Lead{Status: domain.LeadNew}
	if err := decodeLead(data, lead); err != nil {
		return nil, err
	}
	lead.Name = strings.TrimSpace(lead.Name)
	if lead.Name == "" {
		return nil, domain.Invalid("Validation error: name is required")
	}
	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, err
	}
	s.logger.Info("lead created", zap.String("id", lead.ID))
	return lead, nil
}

func (s *LeadService) Get(ctx context.Context, id string) (*domain.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns leads newest first.
func (s *LeadService) List(ctx context.Context) ([]*domain.Lead, error) {
	return s.repo.List(ctx)
}

// Update overlays the submitted fields on the stored lead.
func (s *LeadService) Update(ctx context.Context, id string, data []byte) (*domain.Lead, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if err := validation.Validate(validation.LeadUpdate, data); err != nil {
		return nil, err
	}
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := decodeLead(data, lead); err != nil {
		return nil, err
	}
	if strings.TrimSpace(lead.Name) == "" {
		return nil, domain.Invalid("Validation error: name cannot be empty")
	}
	if err := s.repo.Update(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("lead deleted", zap.String("id", id))
	return nil
}

// decodeLead applies data onto lead, leaving server-owned fields alone.
func decodeLead(data []byte, lead *domain.Lead) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return domain.Invalid("Invalid JSON body")
	}
	for _, k := range []string{"_id", "createdAt", "updatedAt"} {
		delete(fields, k)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return domain.Invalid("Invalid JSON body")
	}
	if err := json.Unmarshal(raw, lead); err != nil {
		return domain.Invalid("Validation error: %v", err)
	}
	if lead.Status == "" {
		lead.Status = domain.LeadNew
	}
	return nil
}
