package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/models"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type mockInstructorRepo struct {
	instructors  map[string]*models.InstructorDetail
	lastAccount  *models.User
	lastSubjects []models.Subject
	createErr    error
}

func (m *mockInstructorRepo) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error) {
	var out []models.Instructor
	for _, d := range m.instructors {
		out = append(out, d.Instructor)
	}
	return out, len(out), nil
}

func (m *mockInstructorRepo) FindByID(ctx context.Context, id string) (*models.InstructorDetail, error) {
	if d, ok := m.instructors[id]; ok {
		copy := *d
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInstructorRepo) FindByEmail(ctx context.Context, email string) (*models.Instructor, error) {
	for _, d := range m.instructors {
		if d.Email == email {
			copy := d.Instructor
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInstructorRepo) CreateWithSubjects(ctx context.Context, instructor *models.Instructor, account *models.User, subjects []models.Subject) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.instructors == nil {
		m.instructors = make(map[string]*models.InstructorDetail)
	}
	instructor.ID = "generated"
	m.lastAccount = account
	m.lastSubjects = subjects
	m.instructors[instructor.ID] = &models.InstructorDetail{Instructor: *instructor, Subjects: subjects}
	return nil
}

func (m *mockInstructorRepo) Update(ctx context.Context, instructor *models.Instructor) error {
	if d, ok := m.instructors[instructor.ID]; ok {
		d.Instructor = *instructor
	}
	return nil
}

func (m *mockInstructorRepo) Deactivate(ctx context.Context, id string) error {
	if d, ok := m.instructors[id]; ok {
		d.Active = false
	}
	return nil
}

func validCreateInstructorRequest() CreateInstructorRequest {
	start := "8:00 AM"
	end := "9:30 AM"
	return CreateInstructorRequest{
		InstructorNo:  "INS-001",
		FirstName:     "Maria",
		LastName:      "Santos",
		Email:         "maria@neattend.edu",
		Phone:         "09181234567",
		SchoolYear:    "2025-2026",
		Semester:      "2nd Semester",
		Department:    "CCS",
		Course:        "BSIT",
		CreateAccount: true,
		Subjects: []InstructorSubjectRequest{
			{
				Name:      "Data Structures",
				Code:      "CS201",
				Sections:  []string{"A", "B"},
				Days:      []string{"mon", "Wednesday"},
				StartTime: &start,
				EndTime:   &end,
			},
		},
	}
}

func TestInstructorServiceCreateNormalizesSchedule(t *testing.T) {
	repo := &mockInstructorRepo{instructors: make(map[string]*models.InstructorDetail)}
	svc := NewInstructorService(repo, validator.New(), zap.NewNop())

	detail, err := svc.Create(context.Background(), validCreateInstructorRequest())
	require.NoError(t, err)
	require.Len(t, detail.Subjects, 1)
	subject := detail.Subjects[0]
	assert.Equal(t, []string{"Monday", "Wednesday"}, []string(subject.Days))
	require.NotNil(t, subject.StartTime)
	assert.Equal(t, "08:00", *subject.StartTime)
	require.NotNil(t, subject.EndTime)
	assert.Equal(t, "09:30", *subject.EndTime)
	assert.Equal(t, models.SemesterSecond, subject.Semester)
	assert.Equal(t, "2025-2026", subject.SchoolYear)

	require.NotNil(t, repo.lastAccount)
	assert.Equal(t, models.RoleInstructor, repo.lastAccount.Role)
}

func TestInstructorServiceCreateRejectsPartialSchedule(t *testing.T) {
	repo := &mockInstructorRepo{instructors: make(map[string]*models.InstructorDetail)}
	svc := NewInstructorService(repo, validator.New(), zap.NewNop())

	req := validCreateInstructorRequest()
	req.Subjects[0].EndTime = nil
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInstructorServiceCreateRejectsInvertedWindow(t *testing.T) {
	repo := &mockInstructorRepo{instructors: make(map[string]*models.InstructorDetail)}
	svc := NewInstructorService(repo, validator.New(), zap.NewNop())

	req := validCreateInstructorRequest()
	start := "10:00"
	end := "09:00"
	req.Subjects[0].StartTime = &start
	req.Subjects[0].EndTime = &end
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_time must be after start_time")
}

func TestInstructorServiceUpdate(t *testing.T) {
	repo := &mockInstructorRepo{instructors: map[string]*models.InstructorDetail{
		"i1": {Instructor: models.Instructor{ID: "i1", Email: "old@neattend.edu", Active: true}},
	}}
	svc := NewInstructorService(repo, validator.New(), zap.NewNop())

	updated, err := svc.Update(context.Background(), "i1", UpdateInstructorRequest{
		FirstName:  "Maria",
		LastName:   "Reyes",
		Email:      "NEW@neattend.edu",
		Phone:      "0917",
		Department: "CCS",
		Course:     "BSIT",
		Active:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "new@neattend.edu", updated.Email)
	assert.Equal(t, "Reyes", updated.LastName)
}
