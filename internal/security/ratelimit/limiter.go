package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	redisclient "github.com/shineinfo/crm-backend/internal/infrastructure/redis"
)

// Limiter counts requests per client in fixed windows. Counts live in Redis
// when a store is configured so every replica shares them; otherwise, or
// when Redis fails, a per-process sliding window is used.
type Limiter struct {
	store   *redisclient.Client
	logger  *zap.Logger
	maxReqs int
	window  time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	cleanup *time.Ticker
	done    chan struct{}
}

type bucket struct {
	requests []time.Time
	lastSeen time.Time
}

func NewLimiter(store *redisclient.Client, maxRequests int, window time.Duration, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Limiter{
		store:   store,
		logger:  logger.With(zap.String("component", "ratelimit")),
		maxReqs: maxRequests,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		cleanup: time.NewTicker(5 * time.Minute),
		done:    make(chan struct{}),
	}
	go l.cleanupOldBuckets()
	return l
}

// Allow records one request for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if key == "" || l.maxReqs <= 0 {
		return true
	}
	if l.store != nil {
		slot := l.now().UnixNano() / int64(l.window)
		n, err := l.store.IncrWindow(ctx, fmt.Sprintf("crm:ratelimit:%s:%d", key, slot), l.window)
		if err == nil {
			return n <= int64(l.maxReqs)
		}
		l.logger.Warn("shared rate limit unavailable, using local window", zap.Error(err))
	}
	return l.allowLocal(key)
}

func (l *Limiter) allowLocal(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{}
		l.buckets[key] = b
	}

	cutoff := now.Add(-l.window)
	reqs := b.requests[:0]
	for _, t := range b.requests {
		if t.After(cutoff) {
			reqs = append(reqs, t)
		}
	}
	b.requests = reqs
	b.lastSeen = now

	if len(b.requests) >= l.maxReqs {
		return false
	}
	b.requests = append(b.requests, now)
	return true
}

func (l *Limiter) cleanupOldBuckets() {
	for {
		select {
		case <-l.done:
			return
		case <-l.cleanup.C:
			l.mu.Lock()
			staleThreshold := l.now().Add(-15 * time.Minute)
			for key, b := range l.buckets {
				if b.lastSeen.Before(staleThreshold) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *Limiter) Stop() {
	l.cleanup.Stop()
	close(l.done)
}
