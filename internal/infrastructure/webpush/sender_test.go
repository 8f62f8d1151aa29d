package webpush

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	webpushgo "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/pkg/config"
)

func newSubscription(t *testing.T, endpoint string) *domain.Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return &domain.Subscription{
		ID:       "sub-1",
		Endpoint: endpoint,
		Keys: domain.SubscriptionKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func newTestSender(t *testing.T) *Sender {
	t.Helper()
	priv, pub, err := webpushgo.GenerateVAPIDKeys()
	require.NoError(t, err)
	return NewSender(config.PushConfig{
		VAPIDPublicKey:  pub,
		VAPIDPrivateKey: priv,
		Subject:         "mailto:ops@shineinfo.example",
	}, nil)
}

func TestSendStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		gone   bool
		fails  bool
	}{
		{"created", http.StatusCreated, false, false},
		{"gone", http.StatusGone, true, true},
		{"not found", http.StatusNotFound, true, true},
		{"server error", http.StatusInternalServerError, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
				assert.NotEmpty(t, r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s := newTestSender(t)
			err := s.Send(context.Background(), newSubscription(t, srv.URL+"/push/abc"), []byte(`{"title":"CRM Reminder"}`))

			assert.Equal(t, int32(1), hits.Load())
			if !tt.fails {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.gone, errors.Is(err, domain.ErrSubscriptionGone))
		})
	}
}

func TestConfigured(t *testing.T) {
	assert.False(t, NewSender(config.PushConfig{}, nil).Configured())
	assert.True(t, newTestSender(t).Configured())
}
