package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neattend/neattend-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "subject_id", "student_id", "date", "status", "time_in", "notes", "recorded_by", "created_at", "updated_at"}).
		AddRow("a-1", "sub-1", "s-1", date, "PRESENT", "07:05", nil, "user-1", time.Now(), time.Now())
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(rows)

	timeIn := "07:05"
	record := &models.AttendanceRecord{SubjectID: "sub-1", StudentID: "s-1", Date: date, Status: models.AttendanceStatusPresent, TimeIn: &timeIn, RecordedBy: "user-1"}
	stored, err := repo.Upsert(context.Background(), record)
	require.NoError(t, err)
	assert.Equal(t, "a-1", stored.ID)
	assert.Equal(t, models.AttendanceStatusPresent, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkMarkCollectsConflicts(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a-1"))
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	records := []models.AttendanceRecord{
		{SubjectID: "sub-1", StudentID: "s-1", Date: date, Status: models.AttendanceStatusPresent, RecordedBy: "user-1"},
		{SubjectID: "sub-1", StudentID: "s-2", Date: date, Status: models.AttendanceStatusLate, RecordedBy: "user-1"},
	}

	conflicts, err := repo.BulkMark(context.Background(), records, false)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "s-2", conflicts[0].StudentID)
	assert.Equal(t, "already marked for this date", conflicts[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkMarkAtomicAbortsOnConflict(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO attendance_records").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	records := []models.AttendanceRecord{
		{SubjectID: "sub-1", StudentID: "s-1", Date: date, Status: models.AttendanceStatusPresent, RecordedBy: "user-1"},
	}

	conflicts, err := repo.BulkMark(context.Background(), records, true)
	require.Error(t, err)
	assert.Nil(t, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySummary(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"status", "cnt"}).
		AddRow("PRESENT", 16).
		AddRow("LATE", 2).
		AddRow("ABSENT", 2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ar.status, COUNT(*) AS cnt FROM attendance_records ar JOIN students st ON st.id = ar.student_id WHERE 1=1 AND ar.student_id = $1 GROUP BY ar.status")).
		WithArgs("s-1").
		WillReturnRows(rows)

	summary, err := repo.Summary(context.Background(), models.AttendanceFilter{StudentID: "s-1"})
	require.NoError(t, err)
	assert.Equal(t, 16, summary.Present)
	assert.Equal(t, 2, summary.Late)
	assert.Equal(t, 2, summary.Absent)
	assert.Equal(t, 20, summary.Total)
	assert.InDelta(t, 90.0, summary.Percent, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
