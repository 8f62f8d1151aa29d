package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineinfo/crm-backend/internal/domain"
)

type memSubscriptionRepo struct {
	byEndpoint map[string]*domain.Subscription
	err        error
}

func (m *memSubscriptionRepo) CreateIfAbsent(_ context.Context, sub *domain.Subscription) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.byEndpoint == nil {
		m.byEndpoint = map[string]*domain.Subscription{}
	}
	if _, ok := m.byEndpoint[sub.Endpoint]; ok {
		return false, nil
	}
	sub.ID = "sub-" + sub.Endpoint
	m.byEndpoint[sub.Endpoint] = sub
	return true, nil
}

func (m *memSubscriptionRepo) List(context.Context) ([]*domain.Subscription, error) {
	out := make([]*domain.Subscription, 0, len(m.byEndpoint))
	for _, s := range m.byEndpoint {
		out = append(out, s)
	}
	return out, nil
}

func (m *memSubscriptionRepo) Delete(context.Context, string) error { return nil }

func TestSubscribeStoresEachEndpointOnce(t *testing.T) {
	repo := &memSubscriptionRepo{}
	s := NewSubscriptionService(repo, nil)
	body := []byte(`{"_id":"client-chosen","endpoint":"https://push.example/1","keys":{"p256dh":"p","auth":"a"}}`)

	created, err := s.Subscribe(context.Background(), body)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "sub-https://push.example/1", repo.byEndpoint["https://push.example/1"].ID)

	created, err = s.Subscribe(context.Background(), body)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.byEndpoint, 1)
}

func TestSubscribeRejectsIncompleteKeys(t *testing.T) {
	s := NewSubscriptionService(&memSubscriptionRepo{}, nil)

	_, err := s.Subscribe(context.Background(), []byte(`{"endpoint":"https://push.example/1","keys":{"p256dh":"p"}}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Subscribe(context.Background(), []byte(`not json`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSubscribePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	s := NewSubscriptionService(&memSubscriptionRepo{err: boom}, nil)
	_, err := s.Subscribe(context.Background(), []byte(`{"endpoint":"e","keys":{"p256dh":"p","auth":"a"}}`))
	assert.ErrorIs(t, err, boom)
}
