package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
)

// PostgresSubscriptionRepository implements domain.SubscriptionRepository
type PostgresSubscriptionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresSubscriptionRepository(db *sql.DB, logger *zap.Logger) *PostgresSubscriptionRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSubscriptionRepository{db: db, logger: logger.With(zap.String("component", "subscription_repository"))}
}

// CreateIfAbsent inserts sub unless the endpoint exists. created reports
// whether a row was written.
func (r *PostgresSubscriptionRepository) CreateIfAbsent(ctx context.Context, sub *domain.Subscription) (bool, error) {
	query := `
		INSERT INTO subscriptions (endpoint, p256dh, auth)
		VALUES ($1, $2, $3)
		ON CONFLICT (endpoint) DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, sub.Endpoint, sub.Keys.P256dh, sub.Keys.Auth).
		Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("failed to store subscription", zap.Error(err))
		return false, fmt.Errorf("failed to store subscription: %w", err)
	}
	return true, nil
}

func (r *PostgresSubscriptionRepository) List(ctx context.Context) ([]*domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, endpoint, p256dh, auth, created_at, updated_at
		FROM subscriptions
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []*domain.Subscription{}
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.ID, &s.Endpoint, &s.Keys.P256dh, &s.Keys.Auth, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

// Delete removes a subscription. Deleting an absent one is not an error.
func (r *PostgresSubscriptionRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}
