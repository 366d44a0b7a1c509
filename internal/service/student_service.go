package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/neattend/neattend-api/internal/ingest"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/internal/repository"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	CreateWithAccount(ctx context.Context, student *models.Student, account *models.User) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStudentRequest holds payload for registering a single student.
type CreateStudentRequest struct {
	StudentNo        string  `json:"student_no" validate:"required"`
	FirstName        string  `json:"first_name" validate:"required"`
	LastName         string  `json:"last_name" validate:"required"`
	Email            string  `json:"email" validate:"required,email"`
	Phone            string  `json:"phone" validate:"required"`
	SchoolYear       string  `json:"school_year" validate:"required"`
	Semester         string  `json:"semester" validate:"required"`
	Department       string  `json:"department" validate:"required"`
	Course           string  `json:"course" validate:"required"`
	Section          string  `json:"section" validate:"required"`
	YearLevel        string  `json:"year_level" validate:"required"`
	DateOfBirth      string  `json:"date_of_birth" validate:"required"`
	Address          *string `json:"address"`
	GuardianName     *string `json:"guardian_name"`
	GuardianPhone    *string `json:"guardian_phone"`
	EmergencyContact *string `json:"emergency_contact"`
	CreateAccount    bool    `json:"create_account"`
}

// UpdateStudentRequest holds payload for updating a student.
type UpdateStudentRequest struct {
	FirstName        string  `json:"first_name" validate:"required"`
	LastName         string  `json:"last_name" validate:"required"`
	Email            string  `json:"email" validate:"required,email"`
	Phone            string  `json:"phone" validate:"required"`
	Department       string  `json:"department" validate:"required"`
	Course           string  `json:"course" validate:"required"`
	Section          string  `json:"section" validate:"required"`
	YearLevel        string  `json:"year_level" validate:"required"`
	Address          *string `json:"address"`
	GuardianName     *string `json:"guardian_name"`
	GuardianPhone    *string `json:"guardian_phone"`
	EmergencyContact *string `json:"emergency_contact"`
	Active           bool    `json:"active"`
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student, optionally with a login account.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	semester := ingest.NormalizeSemester(req.Semester)
	if !models.ValidSemester(semester) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid semester")
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date_of_birth, expected YYYY-MM-DD")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	student := &models.Student{
		StudentNo:        strings.TrimSpace(req.StudentNo),
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Email:            strings.ToLower(req.Email),
		Phone:            req.Phone,
		SchoolYear:       req.SchoolYear,
		Semester:         semester,
		Department:       req.Department,
		Course:           req.Course,
		Section:          req.Section,
		YearLevel:        req.YearLevel,
		DateOfBirth:      dob,
		Address:          req.Address,
		GuardianName:     req.GuardianName,
		GuardianPhone:    req.GuardianPhone,
		EmergencyContact: req.EmergencyContact,
		Active:           true,
	}

	var account *models.User
	if req.CreateAccount {
		password := ingest.GeneratePassword(student.FirstName, student.StudentNo)
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		account = &models.User{
			ID:           uuid.NewString(),
			Email:        student.Email,
			FullName:     student.FirstName + " " + student.LastName,
			Role:         models.RoleStudent,
			Active:       true,
			PasswordHash: string(hash),
		}
	}

	if err := s.repo.CreateWithAccount(ctx, student, account); err != nil {
		if reason, ok := repository.UniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, reason)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Email = strings.ToLower(req.Email)
	student.Phone = req.Phone
	student.Department = req.Department
	student.Course = req.Course
	student.Section = req.Section
	student.YearLevel = req.YearLevel
	student.Address = req.Address
	student.GuardianName = req.GuardianName
	student.GuardianPhone = req.GuardianPhone
	student.EmergencyContact = req.EmergencyContact
	student.Active = req.Active

	if err := s.repo.Update(ctx, student); err != nil {
		if reason, ok := repository.UniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, reason)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate marks a student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}
