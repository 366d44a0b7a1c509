package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/models"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type mockStudentRepo struct {
	students      map[string]*models.Student
	createErr     error
	lastAccount   *models.User
	deactivatedID string
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var out []models.Student
	for _, st := range m.students {
		out = append(out, *st)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := m.students[id]; ok {
		copy := *st
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	for _, st := range m.students {
		if st.Email == email {
			copy := *st
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) CreateWithAccount(ctx context.Context, student *models.Student, account *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.students == nil {
		m.students = make(map[string]*models.Student)
	}
	student.ID = "generated"
	if account != nil {
		student.UserID = &account.ID
	}
	m.lastAccount = account
	copy := *student
	m.students[student.ID] = &copy
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	copy := *student
	m.students[student.ID] = &copy
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivatedID = id
	return nil
}

func validCreateStudentRequest() CreateStudentRequest {
	return CreateStudentRequest{
		StudentNo:   "2025-0001",
		FirstName:   "Juan",
		LastName:    "Dela Cruz",
		Email:       "juan@neattend.edu",
		Phone:       "09171234567",
		SchoolYear:  "2025-2026",
		Semester:    "1st sem",
		Department:  "CCS",
		Course:      "BSIT",
		Section:     "A",
		YearLevel:   "1st Year",
		DateOfBirth: "2006-02-14",
	}
}

func TestStudentServiceCreateNormalizesSemester(t *testing.T) {
	repo := &mockStudentRepo{students: make(map[string]*models.Student)}
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	student, err := svc.Create(context.Background(), validCreateStudentRequest())
	require.NoError(t, err)
	assert.Equal(t, models.SemesterFirst, student.Semester)
	assert.True(t, student.Active)
	assert.Nil(t, repo.lastAccount)
}

func TestStudentServiceCreateWithAccount(t *testing.T) {
	repo := &mockStudentRepo{students: make(map[string]*models.Student)}
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	req := validCreateStudentRequest()
	req.CreateAccount = true
	_, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, repo.lastAccount)
	assert.Equal(t, models.RoleStudent, repo.lastAccount.Role)
	assert.Equal(t, "juan@neattend.edu", repo.lastAccount.Email)
	assert.NotEmpty(t, repo.lastAccount.PasswordHash)
}

func TestStudentServiceCreateRejectsBadSemester(t *testing.T) {
	repo := &mockStudentRepo{students: make(map[string]*models.Student)}
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	req := validCreateStudentRequest()
	req.Semester = "trimester 3"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateMapsUniqueViolation(t *testing.T) {
	repo := &mockStudentRepo{
		students:  make(map[string]*models.Student),
		createErr: &pq.Error{Code: "23505", Constraint: "students_student_no_key"},
	}
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), validCreateStudentRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Student number already registered")
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]*models.Student{"s1": {ID: "s1", Email: "a@neattend.edu"}}}
	svc := NewStudentService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "s1"))
	assert.Equal(t, "s1", repo.deactivatedID)

	err := svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
}
