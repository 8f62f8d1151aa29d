package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineinfo/crm-backend/internal/domain"
)

type memLeadRepo struct {
	byID map[string]*domain.Lead
	seq  int
}

func newMemLeadRepo() *memLeadRepo {
	return &memLeadRepo{byID: map[string]*domain.Lead{}}
}

func (m *memLeadRepo) Create(_ context.Context, l *domain.Lead) error {
	m.seq++
	l.ID = fmt.Sprintf("lead-%d", m.seq)
	l.CreatedAt = time.Now()
	l.UpdatedAt = l.CreatedAt
	cp := *l
	m.byID[l.ID] = &cp
	return nil
}

func (m *memLeadRepo) GetByID(_ context.Context, id string) (*domain.Lead, error) {
	l, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memLeadRepo) List(context.Context) ([]*domain.Lead, error) {
	out := make([]*domain.Lead, 0, len(m.byID))
	for _, l := range m.byID {
		out = append(out, l)
	}
	return out, nil
}

func (m *memLeadRepo) Update(_ context.Context, l *domain.Lead) error {
	if _, ok := m.byID[l.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *l
	m.byID[l.ID] = &cp
	return nil
}

func (m *memLeadRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memLeadRepo) ListMeetingsBetween(_ context.Context, from, to time.Time) ([]*domain.Lead, error) {
	var out []*domain.Lead
	for _, l := range m.byID {
		if !l.MeetingDate.IsZero() && !l.MeetingDate.Before(from) && l.MeetingDate.Before(to) {
			out = append(out, l)
		}
	}
	return out, nil
}

func TestLeadCreateDefaultsStatus(t *testing.T) {
	s := NewLeadService(newMemLeadRepo(), nil)

	lead, err := s.Create(context.Background(), []byte(`{"name":"Ravi","meetingDate":"2026-10-21T11:00:00Z","_id":"forged"}`))
	require.NoError(t, err)
	assert.Equal(t, "lead-1", lead.ID)
	assert.Equal(t, domain.LeadNew, lead.Status)
	assert.Equal(t, 21, lead.MeetingDate.Day())
}

func TestLeadCreateValidation(t *testing.T) {
	s := NewLeadService(newMemLeadRepo(), nil)

	_, err := s.Create(context.Background(), []byte(`{"email":"x@y.z"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Create(context.Background(), []byte(`{"name":"Ravi","status":"Maybe"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Create(context.Background(), []byte(`{"name":"Ravi","meetingDate":"next week"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLeadUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	s := NewLeadService(newMemLeadRepo(), nil)
	lead, err := s.Create(ctx, []byte(`{"name":"Ravi","company":"Acme","meetingDate":"2026-10-21"}`))
	require.NoError(t, err)

	updated, err := s.Update(ctx, lead.ID, []byte(`{"status":"Contacted","meetingDate":null}`))
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Company)
	assert.Equal(t, domain.LeadContacted, updated.Status)
	assert.True(t, updated.MeetingDate.IsZero())

	_, err = s.Update(ctx, lead.ID, []byte(`{"name":"  "}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Update(ctx, "nope", []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Delete(ctx, lead.ID))
	assert.ErrorIs(t, s.Delete(ctx, lead.ID), domain.ErrNotFound)
}
