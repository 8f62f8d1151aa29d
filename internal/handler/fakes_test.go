package handler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/shineinfo/crm-backend/internal/domain"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type memEmployees struct {
	mu   sync.Mutex
	byID map[string]*domain.Employee
	seq  int
}

func newMemEmployees() *memEmployees {
	return &memEmployees{byID: map[string]*domain.Employee{}}
}

func (m *memEmployees) Create(_ context.Context, emp *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if e.Email == emp.Email {
			return &domain.DuplicateError{Field: "email"}
		}
	}
	m.seq++
	emp.ID = fmt.Sprintf("id-%d", m.seq)
	emp.EmployeeID = fmt.Sprintf("emp%02d", m.seq)
	emp.CreatedAt, emp.UpdatedAt = fixedNow, fixedNow
	cp := *emp
	m.byID[emp.ID] = &cp
	return nil
}

func (m *memEmployees) GetByID(_ context.Context, id string) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memEmployees) List(context.Context) ([]*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Employee, 0, len(m.byID))
	for _, e := range m.byID {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memEmployees) Update(_ context.Context, emp *domain.Employee, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.byID[emp.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if !emp.UpdatedAt.Equal(prev.UpdatedAt) {
		return domain.ErrConflict
	}
	emp.ContractAgreement = prev.ContractAgreement
	emp.UpdatedAt = prev.UpdatedAt.Add(time.Second)
	cp := *emp
	m.byID[emp.ID] = &cp
	return nil
}

func (m *memEmployees) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memEmployees) RemoveDocument(_ context.Context, id string, dt domain.DocumentType, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok || !e.HasDocument(dt, publicID) {
		return domain.ErrNotFound
	}
	if dt == domain.DocProfileImage {
		e.ProfileImage = nil
	}
	return nil
}

func (m *memEmployees) ToggleCurrent(_ context.Context, id string) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.IsCurrentEmployee = !e.IsCurrentEmployee
	cp := *e
	return &cp, nil
}

func (m *memEmployees) UpdateContractFields(_ context.Context, id string, _ []domain.ContractField) (*domain.Employee, error) {
	return m.GetByID(context.Background(), id)
}

func (m *memEmployees) AcceptContract(_ context.Context, id string, at time.Time) (*domain.Employee, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	if e.ContractAgreement.Acceptance.Accepted {
		cp := *e
		return &cp, false, nil
	}
	e.ContractAgreement.Acceptance = domain.Acceptance{Accepted: true, AcceptedAt: &at}
	cp := *e
	return &cp, true, nil
}

type memStorage struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
}

func (s *memStorage) Upload(_ context.Context, file domain.Upload, folder string) (*domain.Attachment, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return nil, err
	}
	id := folder + "/" + file.Filename
	s.mu.Lock()
	s.uploaded = append(s.uploaded, id)
	s.mu.Unlock()
	return &domain.Attachment{PublicID: id, URL: "https://cdn.example/" + id}, nil
}

func (s *memStorage) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, publicID)
	return nil
}

type memLeads struct {
	mu   sync.Mutex
	byID map[string]*domain.Lead
	seq  int
}

func newMemLeads() *memLeads { return &memLeads{byID: map[string]*domain.Lead{}} }

func (m *memLeads) Create(_ context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	lead.ID = fmt.Sprintf("lead-%d", m.seq)
	lead.CreatedAt, lead.UpdatedAt = fixedNow, fixedNow
	cp := *lead
	m.byID[lead.ID] = &cp
	return nil
}

func (m *memLeads) GetByID(_ context.Context, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeads) List(context.Context) ([]*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Lead, 0, len(m.byID))
	for _, l := range m.byID {
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memLeads) Update(_ context.Context, lead *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[lead.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *lead
	m.byID[lead.ID] = &cp
	return nil
}

func (m *memLeads) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memLeads) ListMeetingsBetween(context.Context, time.Time, time.Time) ([]*domain.Lead, error) {
	return nil, nil
}

type memSubs struct {
	mu        sync.Mutex
	endpoints map[string]bool
	err       error
}

func (m *memSubs) CreateIfAbsent(_ context.Context, sub *domain.Subscription) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.endpoints == nil {
		m.endpoints = map[string]bool{}
	}
	if m.endpoints[sub.Endpoint] {
		return false, nil
	}
	m.endpoints[sub.Endpoint] = true
	sub.ID = "sub-1"
	return true, nil
}

func (m *memSubs) List(context.Context) ([]*domain.Subscription, error) { return nil, nil }

func (m *memSubs) Delete(context.Context, string) error { return nil }
