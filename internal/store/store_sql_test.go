package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"machine-downtime-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_ApplyEventSQL(t *testing.T) {
	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      bool
	}{
		{
			name: "Missing raw event commits without writes",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "raw_events" WHERE "raw_events"."id" = $1`)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
				mock.ExpectCommit()
			},
		},
		{
			name: "Raw event without timestamp commits without writes",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "raw_events" WHERE "raw_events"."id" = $1`)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "machine_code", "state", "event_time"}).
						AddRow(7, "SVN-1", "Down", nil))
				mock.ExpectCommit()
			},
		},
		{
			name: "Load failure rolls back",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "raw_events" WHERE "raw_events"."id" = $1`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			expectedErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB, logrus.New())

			tc.mockExpectations(mock)

			res, err := s.ApplyEvent(context.Background(), 7, ict)
			if tc.expectedErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Nil(t, res)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_RecordEventRollsBackInsert(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, logrus.New())

	at := time.Date(2024, 5, 1, 8, 0, 0, 0, ict)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "raw_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "raw_events" WHERE "raw_events"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "machine_code", "state", "event_time"}).
			AddRow(7, "SVN-1", "Down", at))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "raw_events" WHERE machine_code = $1 AND event_time IS NOT NULL`)).
		WithArgs("SVN-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	ev := &model.RawEvent{MachineCode: "SVN-1", MachineName: "#1", State: "Down", Operation: "OP-A", Timestamp: &at}
	res, err := s.RecordEvent(context.Background(), ev, ict)
	assert.ErrorContains(t, err, "connection reset")
	assert.Nil(t, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AggregateDaysSQL(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, logrus.New())

	day := time.Date(2024, 5, 1, 15, 0, 0, 0, ict)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "downtime_details" WHERE from_time LIKE $1 ORDER BY id`)).
		WithArgs("2024-05-01%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "operation", "state", "estimate_time", "from_time", "to_time", "duration_minutes"}).
			AddRow(1, "#1", "OP-A", "Down", "", "2024-05-01 08:00:00", "30", 30.0).
			AddRow(2, "#1", "OP-A", "Run", "", "2024-05-01 08:30:00", "", 0.0))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "downtime_summaries"`) +
		`.*` + regexp.QuoteMeta(`ON CONFLICT ("name","operation","date") DO UPDATE SET`)).
		WithArgs("#1", "OP-A", "2024-05-01 08:30:00", Any{}, Any{}, "2024-05-01").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	n, err := s.AggregateDays(context.Background(), &day, ict)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_RebuildDetailsRollsBack(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB, logrus.New())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "downtime_details"`)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "raw_events" WHERE event_time IS NOT NULL`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	n, err := s.RebuildDetails(context.Background(), ict)
	assert.ErrorContains(t, err, "disk full")
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
