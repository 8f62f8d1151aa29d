package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineinfo/crm-backend/internal/domain"
)

const testEmployeeUUID = "6f1c2b9a-3d4e-4f50-8a6b-7c8d9e0f1a2b"

var employeeCols = []string{"id", "employee_id", "email", "password_hash", "doc", "created_at", "updated_at"}

func newMockEmployeeRepo(t *testing.T) (*PostgresEmployeeRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresEmployeeRepository(db, nil), mock
}

func employeeRow(doc string) *sqlmock.Rows {
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(employeeCols).
		AddRow(testEmployeeUUID, "emp07", "asha@shine.example", "hash", []byte(doc), ts, ts)
}

func TestEmployeeCreateAssignsSequentialID(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	ts := time.Now()

	mock.ExpectQuery(`INSERT INTO employees`).
		WithArgs("asha@shine.example", "hash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "employee_id", "created_at", "updated_at"}).
			AddRow(testEmployeeUUID, "emp07", ts, ts))

	emp := domain.NewEmployee()
	emp.Name = "Asha"
	emp.Email = "asha@shine.example"
	emp.PasswordHash = "hash"
	emp.EmployeeID = "emp999"

	require.NoError(t, repo.Create(context.Background(), emp))
	assert.Equal(t, testEmployeeUUID, emp.ID)
	assert.Equal(t, "emp07", emp.EmployeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeCreateRetriesEmployeeIDCollision(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	ts := time.Now()

	mock.ExpectQuery(`INSERT INTO employees`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: constraintEmployeeID})
	mock.ExpectQuery(`INSERT INTO employees`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "employee_id", "created_at", "updated_at"}).
			AddRow(testEmployeeUUID, "emp08", ts, ts))

	emp := domain.NewEmployee()
	emp.Email = "b@shine.example"
	require.NoError(t, repo.Create(context.Background(), emp))
	assert.Equal(t, "emp08", emp.EmployeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeCreateDuplicateEmail(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectQuery(`INSERT INTO employees`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: constraintEmployeeEmail})

	err := repo.Create(context.Background(), domain.NewEmployee())

	var dup *domain.DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "email", dup.Field)
	assert.Equal(t, "email already exists", err.Error())
}

func TestEncodeEmployeeDocDropsColumnKeys(t *testing.T) {
	emp := domain.NewEmployee()
	emp.ID = testEmployeeUUID
	emp.EmployeeID = "emp01"
	emp.Email = "x@y.z"
	emp.Name = "X"
	emp.PasswordHash = "secret"

	raw, err := encodeEmployeeDoc(emp)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	for _, k := range columnOwnedKeys {
		assert.NotContains(t, m, k)
	}
	assert.Equal(t, "X", m["name"])
	assert.NotContains(t, string(raw), "secret")
}

func TestEmployeeGetByID(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectQuery(`SELECT .* FROM employees WHERE id = \$1`).
		WithArgs(testEmployeeUUID).
		WillReturnRows(employeeRow(`{"name":"Asha","employee_id":"stale","profile_image":{"public_id":"employees/a.png","url":"https://cdn/a.png"}}`))

	emp, err := repo.GetByID(context.Background(), testEmployeeUUID)
	require.NoError(t, err)
	assert.Equal(t, "Asha", emp.Name)
	assert.Equal(t, "emp07", emp.EmployeeID)
	assert.Equal(t, "hash", emp.PasswordHash)
	assert.Equal(t, "employees/a.png", emp.ProfileImage.PublicID)
	assert.True(t, emp.IsCurrentEmployee)
	assert.NotNil(t, emp.WorkExperience)
}

func TestEmployeeGetByIDNotFound(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mock.ExpectQuery(`SELECT .* FROM employees`).WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByID(context.Background(), testEmployeeUUID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmployeeListOrdersByEmployeeID(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectQuery(`ORDER BY length\(employee_id\), employee_id`).
		WillReturnRows(employeeRow(`{"name":"Asha"}`))

	list, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Asha", list[0].Name)
}

func TestEmployeeUpdateKeepsPasswordWhenUnchanged(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	readAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)UPDATE employees\s+SET email = \$2.*WHERE id = \$1 AND updated_at = \$5`).
		WithArgs(testEmployeeUUID, "asha@shine.example", nil, sqlmock.AnyArg(), readAt).
		WillReturnRows(employeeRow(`{"name":"Asha B"}`))

	emp := domain.NewEmployee()
	emp.ID = testEmployeeUUID
	emp.Email = "asha@shine.example"
	emp.Name = "Asha B"
	emp.UpdatedAt = readAt

	require.NoError(t, repo.Update(context.Background(), emp, false))
	assert.Equal(t, "Asha B", emp.Name)
	assert.Equal(t, "emp07", emp.EmployeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeUpdateDuplicateEmail(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectQuery(`UPDATE employees`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: constraintEmployeeEmail})

	emp := domain.NewEmployee()
	emp.ID = testEmployeeUUID
	err := repo.Update(context.Background(), emp, true)

	var dup *domain.DuplicateError
	assert.True(t, errors.As(err, &dup))
}

func TestEmployeeUpdateRejectsStaleRead(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectQuery(`UPDATE employees`).WillReturnRows(sqlmock.NewRows(employeeCols))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM employees WHERE id = \$1\)`).
		WithArgs(testEmployeeUUID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	emp := domain.NewEmployee()
	emp.ID = testEmployeeUUID
	emp.UpdatedAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, repo.Update(context.Background(), emp, false), domain.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeUpdateMissingRow(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectQuery(`UPDATE employees`).WillReturnRows(sqlmock.NewRows(employeeCols))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	emp := domain.NewEmployee()
	emp.ID = testEmployeeUUID

	assert.ErrorIs(t, repo.Update(context.Background(), emp, false), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRemoveSingletonDocument(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectExec(`SET doc = jsonb_set\(doc, \$2::text\[\], 'null'::jsonb\)`).
		WithArgs(testEmployeeUUID, pq.Array([]string{"documents", "resume"}),
			pq.Array([]string{"documents", "resume", "public_id"}), "employees/cv.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RemoveDocument(context.Background(), testEmployeeUUID, domain.DocResume, "employees/cv.pdf")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeRemoveDocumentNotReferenced(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectExec(`jsonb_array_elements\(doc #> '\{documents,other_docs\}'\)`).
		WithArgs(testEmployeeUUID, "employees/x.pdf").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RemoveDocument(context.Background(), testEmployeeUUID, domain.DocOtherDocs, "employees/x.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmployeeRemoveExperienceLetter(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectExec(`jsonb_set\(w, '\{experience_letter\}', 'null'::jsonb\)`).
		WithArgs(testEmployeeUUID, "employees/letter.pdf").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RemoveDocument(context.Background(), testEmployeeUUID, domain.DocExperienceLetter, "employees/letter.pdf")
	assert.NoError(t, err)
}

func TestEmployeeToggleCurrent(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectQuery(`NOT COALESCE\(\(doc->>'is_current_employee'\)::boolean, true\)`).
		WithArgs(testEmployeeUUID).
		WillReturnRows(employeeRow(`{"is_current_employee":false}`))

	emp, err := repo.ToggleCurrent(context.Background(), testEmployeeUUID)
	require.NoError(t, err)
	assert.False(t, emp.IsCurrentEmployee)
}

func TestEmployeeUpdateContractFieldsSortedPaths(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	mock.ExpectQuery(`jsonb_set\(jsonb_set\(COALESCE\(doc->'contract_agreement', '\{\}'::jsonb\), \$2::text\[\], \$3::jsonb, true\), \$4::text\[\], \$5::jsonb, true\)`).
		WithArgs(testEmployeeUUID,
			pq.Array([]string{"company"}), `{"name":"Acme"}`,
			pq.Array([]string{"job_title"}), `"Engineer"`).
		WillReturnRows(employeeRow(`{"contract_agreement":{"job_title":"Engineer","company":{"name":"Acme"}}}`))

	emp, err := repo.UpdateContractFields(context.Background(), testEmployeeUUID, []domain.ContractField{
		{Path: []string{"job_title"}, Value: json.RawMessage(`"Engineer"`)},
		{Path: []string{"company"}, Value: json.RawMessage(`{"name":"Acme"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Engineer", emp.ContractAgreement.JobTitle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeUpdateContractFieldsRejectsAcceptance(t *testing.T) {
	repo, _ := newMockEmployeeRepo(t)
	_, err := repo.UpdateContractFields(context.Background(), testEmployeeUUID, []domain.ContractField{
		{Path: []string{"acceptance", "accepted"}, Value: json.RawMessage(`true`)},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEmployeeAcceptContractIsIdempotent(t *testing.T) {
	repo, mock := newMockEmployeeRepo(t)
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	accepted := `{"contract_agreement":{"acceptance":{"accepted":true,"accepted_at":"2024-05-01T10:00:00Z"}}}`

	mock.ExpectQuery(`AND NOT COALESCE\(\(doc #>> '\{contract_agreement,acceptance,accepted\}'\)::boolean, false\)`).
		WithArgs(testEmployeeUUID, "2024-05-01T10:00:00Z").
		WillReturnRows(employeeRow(accepted))

	emp, changed, err := repo.AcceptContract(context.Background(), testEmployeeUUID, first)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, emp.ContractAgreement.Acceptance.AcceptedAt)
	assert.True(t, first.Equal(*emp.ContractAgreement.Acceptance.AcceptedAt))

	mock.ExpectQuery(`UPDATE employees`).WillReturnRows(sqlmock.NewRows(employeeCols))
	mock.ExpectQuery(`SELECT .* FROM employees WHERE id = \$1`).WillReturnRows(employeeRow(accepted))

	again, changed, err := repo.AcceptContract(context.Background(), testEmployeeUUID, first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, first.Equal(*again.ContractAgreement.Acceptance.AcceptedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
