package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
)

const leadColumns = `id, name, email, phone, company, source, status, notes, meeting_date, created_at, updated_at`

// PostgresLeadRepository implements domain.LeadRepository
type PostgresLeadRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresLeadRepository(db *sql.DB, logger *zap.Logger) *PostgresLeadRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresLeadRepository{db: db, logger: logger.With(zap.String("component", "lead_repository"))}
}

func (r *PostgresLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	query := `
		INSERT INTO leads (name, email, phone, company, source, status, notes, meeting_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		lead.Name, lead.Email, lead.Phone, lead.Company, lead.Source,
		string(lead.Status), lead.Notes, lead.MeetingDate.Ptr(),
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		r.logger.Error("failed to create lead", zap.String("name", lead.Name), zap.Error(err))
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

func (r *PostgresLeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	lead, err := scanLead(r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

func (r *PostgresLeadRepository) List(ctx context.Context) ([]*domain.Lead, error) {
	return r.query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC`)
}

// ListMeetingsBetween returns leads with from <= meeting_date < to.
func (r *PostgresLeadRepository) ListMeetingsBetween(ctx context.Context, from, to time.Time) ([]*domain.Lead, error) {
	return r.query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE meeting_date >= $1 AND meeting_date < $2
		ORDER BY meeting_date`, from, to)
}

func (r *PostgresLeadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	if _, err := uuid.Parse(lead.ID); err != nil {
		return domain.ErrNotFound
	}
	query := `
		UPDATE leads
		SET name = $2, email = $3, phone = $4, company = $5, source = $6,
			status = $7, notes = $8, meeting_date = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.Company, lead.Source,
		string(lead.Status), lead.Notes, lead.MeetingDate.Ptr(),
	).Scan(&lead.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to update lead: %w", err)
	}
	return nil
}

func (r *PostgresLeadRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	return requireAffected(result)
}

func (r *PostgresLeadRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Lead, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list leads", zap.Error(err))
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []*domain.Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func scanLead(row rowScanner) (*domain.Lead, error) {
	var (
		lead    domain.Lead
		status  string
		meeting sql.NullTime
	)
	err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Phone, &lead.Company, &lead.Source,
		&status, &lead.Notes, &meeting, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}
	lead.Status = domain.LeadStatus(status)
	if meeting.Valid {
		lead.MeetingDate = domain.NewDate(meeting.Time)
	}
	return &lead, nil
}
