package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/neattend/neattend-api/internal/ingest"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/internal/repository"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type instructorRepository interface {
	List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error)
	FindByID(ctx context.Context, id string) (*models.InstructorDetail, error)
	FindByEmail(ctx context.Context, email string) (*models.Instructor, error)
	CreateWithSubjects(ctx context.Context, instructor *models.Instructor, account *models.User, subjects []models.Subject) error
	Update(ctx context.Context, instructor *models.Instructor) error
	Deactivate(ctx context.Context, id string) error
}

// InstructorSubjectRequest describes one subject assignment supplied with a
// new instructor.
type InstructorSubjectRequest struct {
	Name        string   `json:"name" validate:"required"`
	Code        string   `json:"code" validate:"required"`
	Sections    []string `json:"sections" validate:"required,min=1"`
	Room        *string  `json:"room"`
	MeetingLink *string  `json:"meeting_link"`
	Description *string  `json:"description"`
	Credits     *int     `json:"credits"`
	Days        []string `json:"days"`
	StartTime   *string  `json:"start_time"`
	EndTime     *string  `json:"end_time"`
}

// CreateInstructorRequest holds payload for registering an instructor and
// their subject load.
type CreateInstructorRequest struct {
	InstructorNo   string                     `json:"instructor_no" validate:"required"`
	FirstName      string                     `json:"first_name" validate:"required"`
	LastName       string                     `json:"last_name" validate:"required"`
	Email          string                     `json:"email" validate:"required,email"`
	Phone          string                     `json:"phone" validate:"required"`
	SchoolYear     string                     `json:"school_year" validate:"required"`
	Semester       string                     `json:"semester" validate:"required"`
	Department     string                     `json:"department" validate:"required"`
	Course         string                     `json:"course" validate:"required"`
	Experience     *string                    `json:"experience"`
	Specialization *string                    `json:"specialization"`
	CreateAccount  bool                       `json:"create_account"`
	Subjects       []InstructorSubjectRequest `json:"subjects" validate:"omitempty,dive"`
}

// UpdateInstructorRequest holds payload for updating an instructor.
type UpdateInstructorRequest struct {
	FirstName      string  `json:"first_name" validate:"required"`
	LastName       string  `json:"last_name" validate:"required"`
	Email          string  `json:"email" validate:"required,email"`
	Phone          string  `json:"phone" validate:"required"`
	Department     string  `json:"department" validate:"required"`
	Course         string  `json:"course" validate:"required"`
	Experience     *string `json:"experience"`
	Specialization *string `json:"specialization"`
	Active         bool    `json:"active"`
}

// InstructorService handles instructor use-cases.
type InstructorService struct {
	repo      instructorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstructorService constructs the instructor service.
func NewInstructorService(repo instructorRepository, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorService{repo: repo, validator: validate, logger: logger}
}

// List returns instructors and pagination metadata.
func (s *InstructorService) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, *models.Pagination, error) {
	instructors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
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
	return instructors, pagination, nil
}

// Get returns an instructor with their assigned subjects.
func (s *InstructorService) Get(ctx context.Context, id string) (*models.InstructorDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return detail, nil
}

// Create registers an instructor together with an optional account and
// subject assignments, all in one transaction.
func (s *InstructorService) Create(ctx context.Context, req CreateInstructorRequest) (*models.InstructorDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	semester := ingest.NormalizeSemester(req.Semester)
	if !models.ValidSemester(semester) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid semester")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	instructor := &models.Instructor{
		InstructorNo:   strings.TrimSpace(req.InstructorNo),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          strings.ToLower(req.Email),
		Phone:          req.Phone,
		SchoolYear:     req.SchoolYear,
		Semester:       semester,
		Department:     req.Department,
		Course:         req.Course,
		Experience:     req.Experience,
		Specialization: req.Specialization,
		Active:         true,
	}

	subjects := make([]models.Subject, 0, len(req.Subjects))
	for _, sub := range req.Subjects {
		days, start, end, err := resolveSchedule(sub.Days, sub.StartTime, sub.EndTime)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject "+sub.Code+": "+err.Error())
		}
		subjects = append(subjects, models.Subject{
			Name:        sub.Name,
			Code:        sub.Code,
			Sections:    sub.Sections,
			Room:        sub.Room,
			MeetingLink: sub.MeetingLink,
			Description: sub.Description,
			Credits:     sub.Credits,
			Days:        days,
			StartTime:   start,
			EndTime:     end,
			SchoolYear:  instructor.SchoolYear,
			Semester:    instructor.Semester,
		})
	}

	var account *models.User
	if req.CreateAccount {
		password := ingest.GeneratePassword(instructor.FirstName, instructor.InstructorNo)
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		account = &models.User{
			ID:           uuid.NewString(),
			Email:        instructor.Email,
			FullName:     instructor.FirstName + " " + instructor.LastName,
			Role:         models.RoleInstructor,
			Active:       true,
			PasswordHash: string(hash),
		}
	}

	if err := s.repo.CreateWithSubjects(ctx, instructor, account, subjects); err != nil {
		if reason, ok := repository.UniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, reason)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}

	return &models.InstructorDetail{Instructor: *instructor, Subjects: subjects}, nil
}

// Update modifies an existing instructor record.
func (s *InstructorService) Update(ctx context.Context, id string, req UpdateInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	instructor := detail.Instructor
	instructor.FirstName = req.FirstName
	instructor.LastName = req.LastName
	instructor.Email = strings.ToLower(req.Email)
	instructor.Phone = req.Phone
	instructor.Department = req.Department
	instructor.Course = req.Course
	instructor.Experience = req.Experience
	instructor.Specialization = req.Specialization
	instructor.Active = req.Active

	if err := s.repo.Update(ctx, &instructor); err != nil {
		if reason, ok := repository.UniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, reason)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
	}
	return &instructor, nil
}

// Deactivate marks an instructor inactive.
func (s *InstructorService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate instructor")
	}
	return nil
}
