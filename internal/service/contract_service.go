package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/contract"
	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/pkg/cache"
)

const pdfCacheTTL = 24 * time.Hour

// ContractService drives an employee's agreement through drafted, populated
// and accepted, and renders it.
type ContractService struct {
	repo     domain.EmployeeRepository
	pdfCache *cache.Cache[[]byte]
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewContractService(repo domain.EmployeeRepository, pdfCache *cache.Cache[[]byte], loc *time.Location, logger *zap.Logger) *ContractService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ContractService{
		repo:     repo,
		pdfCache: pdfCache,
		loc:      loc,
		now:      time.Now,
		logger:   logger.With(zap.String("component", "contract_service")),
	}
}

// Preview renders the agreement page for employee id.
func (s *ContractService) Preview(ctx context.Context, id string) ([]byte, error) {
	emp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return contract.HTML(contract.Build(emp, s.now().In(s.loc)))
}

// Download renders the agreement PDF and the attachment filename. A PDF is
// reused while the record is unchanged within the same day.
func (s *ContractService) Download(ctx context.Context, id string) ([]byte, string, error) {
	emp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("Employment_Contract_%s.pdf", emp.EmployeeID)
	now := s.now().In(s.loc)

	key := fmt.Sprintf("%s|%d|%s", emp.ID, emp.UpdatedAt.UnixNano(), now.Format("2006-01-02"))
	if s.pdfCache != nil {
		if doc, ok := s.pdfCache.Get(key); ok {
			return doc, filename, nil
		}
	}

	doc, err := contract.PDF(contract.Build(emp, now))
	if err != nil {
		return nil, "", err
	}
	if s.pdfCache != nil {
		s.pdfCache.Invalidate(emp.ID + "|")
		s.pdfCache.Set(key, doc, pdfCacheTTL)
	}
	return doc, filename, nil
}

// Accept marks the agreement accepted. Accepting twice returns the original
// acceptance unchanged.
func (s *ContractService) Accept(ctx context.Context, id string) (*domain.Acceptance, error) {
	emp, changed, err := s.repo.AcceptContract(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("contract accepted", zap.String("id", id), zap.String("employee_id", emp.EmployeeID))
	} else {
		s.logger.Info("contract already accepted", zap.String("id", id))
	}
	acc := emp.ContractAgreement.Acceptance
	return &acc, nil
}

// Update merges flat or dotted keys into the agreement. Acceptance keys are
// dropped; unknown top-level keys are rejected.
func (s *ContractService) Update(ctx context.Context, id string, body map[string]json.RawMessage) (*domain.ContractAgreement, error) {
	emp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	current, err := toMap(emp.ContractAgreement)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	touched := map[string]bool{}
	for _, key := range keys {
		path := strings.Split(strings.TrimPrefix(key, "contract_agreement."), ".")
		top := path[0]
		if top == "acceptance" {
			s.logger.Warn("acceptance field ignored on contract update", zap.String("id", id), zap.String("key", key))
			continue
		}
		if !domain.ContractUpdatableKeys[top] {
			return nil, domain.Invalid("Unknown contract field: %s", key)
		}
		var value any
		if err := json.Unmarshal(body[key], &value); err != nil {
			return nil, domain.Invalid("Invalid value for %s", key)
		}
		setPath(current, path, value)
		touched[top] = true
	}

	if len(touched) == 0 {
		return &emp.ContractAgreement, nil
	}

	merged, err := json.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("encode contract: %w", err)
	}
	var agreement domain.ContractAgreement
	if err := json.Unmarshal(merged, &agreement); err != nil {
		return nil, domain.Invalid("Validation error: %v", err)
	}

	// Re-encode through the typed agreement so stored values are normalised.
	normalised, err := json.Marshal(agreement)
	if err != nil {
		return nil, fmt.Errorf("encode contract: %w", err)
	}
	var byKey map[string]json.RawMessage
	if err := json.Unmarshal(normalised, &byKey); err != nil {
		return nil, fmt.Errorf("decode contract: %w", err)
	}

	fields := make([]domain.ContractField, 0, len(touched))
	for top := range touched {
		fields = append(fields, domain.ContractField{Path: []string{top}, Value: byKey[top]})
	}

	updated, err := s.repo.UpdateContractFields(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.logger.Info("contract updated", zap.String("id", id), zap.Int("fields", len(fields)),
		zap.String("state", string(updated.ContractAgreement.State())))
	return &updated.ContractAgreement, nil
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode contract: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode contract: %w", err)
	}
	return out, nil
}

// setPath assigns value at path, replacing non-object intermediates.
func setPath(m map[string]any, path []string, value any) {
	for _, p := range path[:len(path)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[path[len(path)-1]] = value
}
