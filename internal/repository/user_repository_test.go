package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineinfo/crm-backend/internal/domain"
)

func TestUserCreateDuplicateUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUserRepository(db, nil)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("hr@shine.example", "hr", "hash", "hr", true).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	err = repo.Create(context.Background(), &domain.User{
		Email: "hr@shine.example", Username: "hr", PasswordHash: "hash", Role: domain.RoleHR, IsActive: true,
	})
	var dup *domain.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "username", dup.Field)
}

func TestUserGetByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresUserRepository(db, nil)
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE email = \$1 AND is_active = true`).
		WithArgs("admin@shine.example").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "password_hash", "role", "created_at", "updated_at", "is_active"}).
			AddRow(testEmployeeUUID, "admin@shine.example", "admin", "hash", "admin", now, now, true))
	mock.ExpectQuery(`FROM users WHERE email = \$1`).WillReturnError(sql.ErrNoRows)

	user, err := repo.GetByEmail(context.Background(), "admin@shine.example")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, user.Role)

	_, err = repo.GetByEmail(context.Background(), "ghost@shine.example")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
