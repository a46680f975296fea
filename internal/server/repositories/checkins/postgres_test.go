package checkins

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/doorkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestRecord_NullsEmptyIDs(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+check_in_attempts.*RETURNING\s+id$`).
		WithArgs(at, "203.0.113.9", "invalid_format",
			sql.NullString{}, sql.NullString{}, sql.NullString{String: "door-1", Valid: true}, sql.NullString{}, "").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	a := &models.CheckInAttempt{OccurredAt: at, Caller: "203.0.113.9", Outcome: "invalid_format", DeviceID: "door-1"}
	require.NoError(t, repo.Record(context.Background(), a))
	assert.Equal(t, int64(17), a.ID)
}

func TestRecord_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+check_in_attempts`).WillReturnError(errors.New("disk full"))

	err := repo.Record(context.Background(), &models.CheckInAttempt{Caller: "x", Outcome: "error"})
	assert.ErrorContains(t, err, "db error: disk full")
}

func TestListRecent(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Now()

	cols := []string{"id", "occurred_at", "caller", "outcome", "attendee_id", "event_id", "device_id", "staff_id", "detail"}
	mock.ExpectQuery(`(?s)FROM\s+check_in_attempts\s+ORDER\s+BY\s+occurred_at\s+DESC.*LIMIT\s+\$1$`).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), at, "10.0.0.1", "success", "a1", "e1", "door-1", nil, "").
			AddRow(int64(1), at, "10.0.0.1", "rate_limited", nil, nil, nil, nil, "retry after 42s"))

	list, err := repo.ListRecent(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].AttendeeID)
	assert.Equal(t, "", list[0].StaffID)
	assert.Equal(t, "", list[1].AttendeeID)
	assert.Equal(t, "retry after 42s", list[1].Detail)
}

func TestListRecent_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM\s+check_in_attempts`).WillReturnError(errors.New("down"))

	_, err := repo.ListRecent(context.Background(), 10)
	assert.ErrorContains(t, err, "db error: down")
}
