package domain

import (
	"context"
	"time"
)

type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is a browser push endpoint, unique by Endpoint.
type Subscription struct {
	ID        string           `json:"_id"`
	Endpoint  string           `json:"endpoint"`
	Keys      SubscriptionKeys `json:"keys"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type SubscriptionRepository interface {
	// CreateIfAbsent stores sub unless its endpoint is already registered.
	CreateIfAbsent(ctx context.Context, sub *Subscription) (bool, error)
	List(ctx context.Context) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
}

// PushSender delivers one payload to one endpoint. It returns
// ErrSubscriptionGone when the push service reports the endpoint as expired.
type PushSender interface {
	Send(ctx context.Context, sub *Subscription, payload []byte) error
}
