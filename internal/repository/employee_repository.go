package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/shineinfo/crm-backend/internal/domain"
	"github.com/shineinfo/crm-backend/pkg/database"
)

const (
	employeeColumns = `id, employee_id, email, password_hash, doc, created_at, updated_at`

	constraintEmployeeEmail = "employees_email_key"
	constraintEmployeeID    = "employees_employee_id_key"

	maxEmployeeIDAttempts = 3
)

// Keys owned by table columns. They are never written into the document.
var columnOwnedKeys = []string{"_id", "employee_id", "email", "created_at", "updated_at"}

// PostgresEmployeeRepository stores employees as JSONB documents with the
// unique fields promoted to columns.
type PostgresEmployeeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresEmployeeRepository creates a new employee repository
func NewPostgresEmployeeRepository(db *sql.DB, logger *zap.Logger) *PostgresEmployeeRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresEmployeeRepository{
		db:     db,
		logger: logger.With(zap.String("component", "employee_repository")),
	}
}

// Create inserts emp and assigns its sequential employee_id. The number comes
// from a sequence so concurrent creators never share one; a collision with a
// manually inserted id is retried with the next value.
func (r *PostgresEmployeeRepository) Create(ctx context.Context, emp *domain.Employee) error {
	doc, err := encodeEmployeeDoc(emp)
	if err != nil {
		return err
	}

	query := `
		WITH next AS (
			SELECT n, 'emp' || lpad(n::text, GREATEST(2, length(n::text)), '0') AS code
			FROM (SELECT nextval('employee_number_seq') AS n) s
		)
		INSERT INTO employees (employee_id, email, password_hash, doc)
		SELECT code, $1, $2, $3::jsonb FROM next
		RETURNING id, employee_id, created_at, updated_at
	`

	for attempt := 1; attempt <= maxEmployeeIDAttempts; attempt++ {
		err = r.db.QueryRowContext(ctx, query, emp.Email, emp.PasswordHash, doc).
			Scan(&emp.ID, &emp.EmployeeID, &emp.CreatedAt, &emp.UpdatedAt)
		if err == nil {
			return nil
		}

		constraint, dup := database.UniqueViolation(err)
		if !dup {
			r.logger.Error("failed to create employee", zap.String("email", emp.Email), zap.Error(err))
			return fmt.Errorf("failed to create employee: %w", err)
		}
		if constraint != constraintEmployeeID {
			return duplicateFor(constraint)
		}
		r.logger.Warn("employee_id collision, retrying", zap.Int("attempt", attempt))
	}
	return fmt.Errorf("failed to assign employee_id after %d attempts: %w", maxEmployeeIDAttempts, err)
}

// GetByID retrieves an employee by its record id
func (r *PostgresEmployeeRepository) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id)
	emp, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return emp, nil
}

// List returns every employee ordered by employee_id.
func (r *PostgresEmployeeRepository) List(ctx context.Context) ([]*domain.Employee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY length(employee_id), employee_id`)
	if err != nil {
		r.logger.Error("failed to list employees", zap.Error(err))
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []*domain.Employee{}
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// Update replaces the stored document. The contract agreement is owned by the
// contract endpoints and is carried over from the stored row. The password
// hash is only written when passwordChanged is set.
//
// The write is conditional on emp.UpdatedAt matching the stored row, so a
// document delete or another update that landed after emp was read is never
// overwritten. That case returns domain.ErrConflict.
func (r *PostgresEmployeeRepository) Update(ctx context.Context, emp *domain.Employee, passwordChanged bool) error {
	if _, err := uuid.Parse(emp.ID); err != nil {
		return domain.ErrNotFound
	}
	doc, err := encodeEmployeeDoc(emp)
	if err != nil {
		return err
	}

	var hash sql.NullString
	if passwordChanged {
		hash = sql.NullString{String: emp.PasswordHash, Valid: true}
	}

	query := `
		UPDATE employees
		SET email = $2,
			password_hash = COALESCE($3::text, password_hash),
			doc = $4::jsonb || jsonb_build_object('contract_agreement', COALESCE(doc->'contract_agreement', '{}'::jsonb)),
			updated_at = now()
		WHERE id = $1 AND updated_at = $5
		RETURNING ` + employeeColumns

	updated, err := scanEmployee(r.db.QueryRowContext(ctx, query, emp.ID, emp.Email, hash, doc, emp.UpdatedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.missOrConflict(ctx, emp.ID)
		}
		if constraint, dup := database.UniqueViolation(err); dup {
			return duplicateFor(constraint)
		}
		r.logger.Error("failed to update employee", zap.String("id", emp.ID), zap.Error(err))
		return fmt.Errorf("failed to update employee: %w", err)
	}
	*emp = *updated
	return nil
}

// missOrConflict tells a deleted row from one whose updated_at moved on.
func (r *PostgresEmployeeRepository) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check employee: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	r.logger.Warn("employee changed concurrently, update rejected", zap.String("id", id))
	return domain.ErrConflict
}

// Delete removes the employee row
func (r *PostgresEmployeeRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}
	return requireAffected(result)
}

var singletonDocumentPaths = map[domain.DocumentType][]string{
	domain.DocProfileImage:   {"profile_image"},
	domain.DocAadharDocument: {"aadhar_document"},
	domain.DocPanDocument:    {"pan_document"},
	domain.DocResume:         {"documents", "resume"},
	domain.DocOfferLetter:    {"documents", "offer_letter"},
	domain.DocJoiningLetter:  {"documents", "joining_letter"},
}

// RemoveDocument clears the reference to publicID in slot dt. It returns
// ErrNotFound when the employee does not hold that reference.
func (r *PostgresEmployeeRepository) RemoveDocument(ctx context.Context, id string, dt domain.DocumentType, publicID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}

	var (
		query string
		args  []any
	)
	switch dt {
	case domain.DocOtherDocs:
		query = `
			UPDATE employees
			SET doc = jsonb_set(doc, '{documents,other_docs}', COALESCE((
					SELECT jsonb_agg(d ORDER BY ord)
					FROM jsonb_array_elements(doc #> '{documents,other_docs}') WITH ORDINALITY AS t(d, ord)
					WHERE d->>'public_id' <> $2
				), '[]'::jsonb)),
				updated_at = now()
			WHERE id = $1
			  AND EXISTS (
				SELECT 1 FROM jsonb_array_elements(doc #> '{documents,other_docs}') d
				WHERE d->>'public_id' = $2
			  )`
		args = []any{id, publicID}
	case domain.DocExperienceLetter:
		query = `
			UPDATE employees
			SET doc = jsonb_set(doc, '{work_experience}', COALESCE((
					SELECT jsonb_agg(
						CASE WHEN w #>> '{experience_letter,public_id}' = $2
							THEN jsonb_set(w, '{experience_letter}', 'null'::jsonb)
							ELSE w
						END ORDER BY ord)
					FROM jsonb_array_elements(doc->'work_experience') WITH ORDINALITY AS t(w, ord)
				), '[]'::jsonb)),
				updated_at = now()
			WHERE id = $1
			  AND EXISTS (
				SELECT 1 FROM jsonb_array_elements(doc->'work_experience') w
				WHERE w #>> '{experience_letter,public_id}' = $2
			  )`
		args = []any{id, publicID}
	default:
		path, ok := singletonDocumentPaths[dt]
		if !ok {
			return domain.Invalid("Invalid document type")
		}
		query = `
			UPDATE employees
			SET doc = jsonb_set(doc, $2::text[], 'null'::jsonb),
				updated_at = now()
			WHERE id = $1 AND doc #>> $3::text[] = $4`
		args = []any{id, pq.Array(path), pq.Array(append(append([]string{}, path...), "public_id")), publicID}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to remove document",
			zap.String("id", id), zap.String("doc_type", string(dt)), zap.Error(err))
		return fmt.Errorf("failed to remove document: %w", err)
	}
	return requireAffected(result)
}

// ToggleCurrent flips is_current_employee in place.
func (r *PostgresEmployeeRepository) ToggleCurrent(ctx context.Context, id string) (*domain.Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	query := `
		UPDATE employees
		SET doc = jsonb_set(doc, '{is_current_employee}',
				to_jsonb(NOT COALESCE((doc->>'is_current_employee')::boolean, true))),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + employeeColumns

	emp, err := scanEmployee(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to toggle employee: %w", err)
	}
	return emp, nil
}

// UpdateContractFields merges each field under contract_agreement with one
// jsonb_set per field. Paths are applied in key order so the statement text is stable.
func (r *PostgresEmployeeRepository) UpdateContractFields(ctx context.Context, id string, fields []domain.ContractField) (*domain.Employee, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	if len(fields) == 0 {
		return r.GetByID(ctx, id)
	}

	sorted := append([]domain.ContractField(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

	expr := `COALESCE(doc->'contract_agreement', '{}'::jsonb)`
	args := []any{id}
	for _, f := range sorted {
		if len(f.Path) == 0 || f.Path[0] == "acceptance" {
			return nil, domain.Invalid("contract field %q cannot be updated", f.Key())
		}
		args = append(args, pq.Array(f.Path), string(f.Value))
		expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], $%d::jsonb, true)", expr, len(args)-1, len(args))
	}

	query := `
		UPDATE employees
		SET doc = jsonb_set(doc, '{contract_agreement}', ` + expr + `, true),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + employeeColumns

	emp, err := scanEmployee(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("failed to update contract", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to update contract: %w", err)
	}
	return emp, nil
}

// AcceptContract records acceptance at the given time unless the contract is
// already accepted. changed is false when an earlier acceptance was kept.
func (r *PostgresEmployeeRepository) AcceptContract(ctx context.Context, id string, at time.Time) (*domain.Employee, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, domain.ErrNotFound
	}
	query := `
		UPDATE employees
		SET doc = jsonb_set(
				jsonb_set(doc, '{contract_agreement}', COALESCE(doc->'contract_agreement', '{}'::jsonb), true),
				'{contract_agreement,acceptance}',
				jsonb_build_object('accepted', true, 'accepted_at', $2::text),
				true),
			updated_at = now()
		WHERE id = $1
		  AND NOT COALESCE((doc #>> '{contract_agreement,acceptance,accepted}')::boolean, false)
		RETURNING ` + employeeColumns

	emp, err := scanEmployee(r.db.QueryRowContext(ctx, query, id, at.UTC().Format(time.RFC3339Nano)))
	if err == nil {
		return emp, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		r.logger.Error("failed to accept contract", zap.String("id", id), zap.Error(err))
		return nil, false, fmt.Errorf("failed to accept contract: %w", err)
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*domain.Employee, error) {
	var (
		id, employeeID, email, hash string
		doc                         []byte
		createdAt, updatedAt        time.Time
	)
	if err := row.Scan(&id, &employeeID, &email, &hash, &doc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	emp := domain.NewEmployee()
	if err := json.Unmarshal(doc, emp); err != nil {
		return nil, fmt.Errorf("decode employee %s: %w", id, err)
	}
	emp.ID = id
	emp.EmployeeID = employeeID
	emp.Email = email
	emp.PasswordHash = hash
	emp.CreatedAt = createdAt
	emp.UpdatedAt = updatedAt
	if emp.WorkExperience == nil {
		emp.WorkExperience = []domain.WorkExperience{}
	}
	if emp.Documents.OtherDocs == nil {
		emp.Documents.OtherDocs = []domain.Attachment{}
	}
	return emp, nil
}

func encodeEmployeeDoc(emp *domain.Employee) ([]byte, error) {
	raw, err := json.Marshal(emp)
	if err != nil {
		return nil, fmt.Errorf("encode employee: %w", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode employee: %w", err)
	}
	for _, k := range columnOwnedKeys {
		delete(m, k)
	}
	return json.Marshal(m)
}

func duplicateFor(constraint string) error {
	switch {
	case constraint == constraintEmployeeEmail, strings.HasSuffix(constraint, "_email_key"):
		return &domain.DuplicateError{Field: "email"}
	case constraint == constraintEmployeeID:
		return &domain.DuplicateError{Field: "employee_id"}
	case strings.HasSuffix(constraint, "_username_key"):
		return &domain.DuplicateError{Field: "username"}
	case strings.HasSuffix(constraint, "_endpoint_key"):
		return &domain.DuplicateError{Field: "endpoint"}
	}
	return &domain.DuplicateError{Field: constraint}
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
