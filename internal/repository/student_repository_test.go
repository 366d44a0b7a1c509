package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neattend/neattend-api/internal/models"
)

func newStudentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sampleStudent(no, email string) *models.Student {
	return &models.Student{
		StudentNo:   no,
		FirstName:   "Juan",
		LastName:    "Dela Cruz",
		Email:       email,
		Phone:       "09123456789",
		SchoolYear:  "2025-2026",
		Semester:    models.SemesterFirst,
		Department:  "CCS",
		Course:      "BSIT",
		Section:     "A",
		YearLevel:   "3",
		DateOfBirth: time.Date(2003, 5, 13, 0, 0, 0, 0, time.UTC),
		Active:      true,
	}
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_no", "first_name", "last_name", "email", "phone", "school_year", "semester", "department", "course", "section", "year_level", "date_of_birth", "address", "guardian_name", "guardian_phone", "emergency_contact", "user_id", "active", "created_at", "updated_at"}).
		AddRow("s-1", "2025-0001", "Juan", "Dela Cruz", "juan@neattend.edu", "09123456789", "2025-2026", "1st Semester", "CCS", "BSIT", "A", "3", time.Now(), nil, nil, nil, nil, nil, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE 1=1 AND section = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("A").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1 AND section = $1")).
		WithArgs("A").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Section: "A"})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := sampleStudent("2025-0001", "juan@neattend.edu")
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.False(t, student.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateWithAccountRollsBackOnDuplicate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_email_key"})
	mock.ExpectRollback()

	student := sampleStudent("2025-0001", "dup@neattend.edu")
	account := &models.User{Email: "dup@neattend.edu", PasswordHash: "hash", FullName: "Juan Dela Cruz", Role: models.RoleStudent, Active: true}
	err := repo.CreateWithAccount(context.Background(), student, account)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryBulkCreatePartialFailure(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	// First entry trips a duplicate email, second commits.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "students_email_key"})
	mock.ExpectRollback()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	batch := []StudentOnboarding{
		{
			Student: sampleStudent("2025-0001", "dup@neattend.edu"),
			Account: &models.User{Email: "dup@neattend.edu", PasswordHash: "hash", FullName: "Juan Dela Cruz", Role: models.RoleStudent, Active: true},
		},
		{
			Student: sampleStudent("2025-0002", "fresh@neattend.edu"),
			Account: &models.User{Email: "fresh@neattend.edu", PasswordHash: "hash", FullName: "Maria Santos", Role: models.RoleStudent, Active: true},
		},
	}

	failures := repo.BulkCreate(context.Background(), batch)
	require.Len(t, failures, 1)
	assert.Equal(t, 0, failures[0].Index)
	assert.Equal(t, "Email address already registered", failures[0].Reason)
	assert.Error(t, failures[0].Err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newStudentMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET active = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("s-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "s-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
