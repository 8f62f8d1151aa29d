package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineinfo/crm-backend/internal/domain"
)

const testLeadUUID = "0b8e0c1d-1111-4a2b-9c3d-4e5f6a7b8c9d"

var leadCols = []string{"id", "name", "email", "phone", "company", "source", "status", "notes", "meeting_date", "created_at", "updated_at"}

func newMockLeadRepo(t *testing.T) (*PostgresLeadRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresLeadRepository(db, nil), mock
}

func TestLeadCreate(t *testing.T) {
	repo, mock := newMockLeadRepo(t)
	meeting := time.Date(2024, 5, 2, 11, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs("Globex", "", "", "", "", "New", "", meeting).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testLeadUUID, now, now))

	lead := &domain.Lead{Name: "Globex", Status: domain.LeadNew, MeetingDate: domain.NewDate(meeting)}
	require.NoError(t, repo.Create(context.Background(), lead))
	assert.Equal(t, testLeadUUID, lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadCreateWithoutMeeting(t *testing.T) {
	repo, mock := newMockLeadRepo(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO leads`).
		WithArgs("Initech", "", "", "", "", "New", "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testLeadUUID, now, now))

	require.NoError(t, repo.Create(context.Background(), &domain.Lead{Name: "Initech", Status: domain.LeadNew}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLeadListMeetingsBetween(t *testing.T) {
	repo, mock := newMockLeadRepo(t)
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 3)
	meeting := from.Add(26 * time.Hour)

	mock.ExpectQuery(`WHERE meeting_date >= \$1 AND meeting_date < \$2`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(leadCols).
			AddRow(testLeadUUID, "Globex", "", "", "", "", "New", "", meeting, from, from).
			AddRow("0b8e0c1d-2222-4a2b-9c3d-4e5f6a7b8c9d", "Umbrella", "", "", "", "", "New", "", nil, from, from))

	leads, err := repo.ListMeetingsBetween(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	assert.True(t, meeting.Equal(leads[0].MeetingDate.Time))
	assert.True(t, leads[1].MeetingDate.IsZero())
}

func TestLeadGetByIDNotFound(t *testing.T) {
	repo, mock := newMockLeadRepo(t)
	mock.ExpectQuery(`FROM leads WHERE id = \$1`).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), testLeadUUID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.GetByID(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLeadDelete(t *testing.T) {
	repo, mock := newMockLeadRepo(t)
	mock.ExpectExec(`DELETE FROM leads`).WithArgs(testLeadUUID).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), testLeadUUID), domain.ErrNotFound)
}

func TestSubscriptionCreateIfAbsentNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresSubscriptionRepository(db, nil)
	now := time.Now()

	mock.ExpectQuery(`ON CONFLICT \(endpoint\) DO NOTHING`).
		WithArgs("https://push.example/1", "p", "a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(testLeadUUID, now, now))
	mock.ExpectQuery(`ON CONFLICT \(endpoint\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}))

	sub := &domain.Subscription{Endpoint: "https://push.example/1", Keys: domain.SubscriptionKeys{P256dh: "p", Auth: "a"}}
	created, err := repo.CreateIfAbsent(context.Background(), sub)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateIfAbsent(context.Background(), &domain.Subscription{Endpoint: sub.Endpoint, Keys: sub.Keys})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}
