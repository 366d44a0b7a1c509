package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/ingest"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/internal/repository"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type subjectRepository interface {
	List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectWithInstructor, int, error)
	FindByID(ctx context.Context, id string) (*models.SubjectWithInstructor, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, id string) error
	CountAttendanceRecords(ctx context.Context, id string) (int, error)
}

type subjectInstructorStore interface {
	FindByID(ctx context.Context, id string) (*models.InstructorDetail, error)
}

// CreateSubjectRequest holds payload for creating a standalone subject.
type CreateSubjectRequest struct {
	InstructorID string   `json:"instructor_id" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Code         string   `json:"code" validate:"required"`
	Sections     []string `json:"sections" validate:"required,min=1"`
	Room         *string  `json:"room"`
	MeetingLink  *string  `json:"meeting_link"`
	Description  *string  `json:"description"`
	Credits      *int     `json:"credits"`
	Days         []string `json:"days"`
	StartTime    *string  `json:"start_time"`
	EndTime      *string  `json:"end_time"`
	SchoolYear   string   `json:"school_year" validate:"required"`
	Semester     string   `json:"semester" validate:"required"`
}

// UpdateSubjectRequest holds payload for updating a subject.
type UpdateSubjectRequest struct {
	Name        string   `json:"name" validate:"required"`
	Sections    []string `json:"sections" validate:"required,min=1"`
	Room        *string  `json:"room"`
	MeetingLink *string  `json:"meeting_link"`
	Description *string  `json:"description"`
	Credits     *int     `json:"credits"`
	Days        []string `json:"days"`
	StartTime   *string  `json:"start_time"`
	EndTime     *string  `json:"end_time"`
}

// SubjectService handles subject catalog use-cases.
type SubjectService struct {
	repo        subjectRepository
	instructors subjectInstructorStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubjectService constructs the subject service.
func NewSubjectService(repo subjectRepository, instructors subjectInstructorStore, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, instructors: instructors, validator: validate, logger: logger}
}

// List returns subjects and pagination metadata.
func (s *SubjectService) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectWithInstructor, *models.Pagination, error) {
	subjects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
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
	return subjects, pagination, nil
}

// Get returns a subject with instructor metadata.
func (s *SubjectService) Get(ctx context.Context, id string) (*models.SubjectWithInstructor, error) {
	subject, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// ListByInstructor returns all subjects assigned to one instructor.
func (s *SubjectService) ListByInstructor(ctx context.Context, instructorID string) ([]models.Subject, error) {
	subjects, err := s.repo.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructor subjects")
	}
	return subjects, nil
}

// Create adds a subject to an existing instructor's load.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	semester := ingest.NormalizeSemester(req.Semester)
	if !models.ValidSemester(semester) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid semester")
	}

	if _, err := s.instructors.FindByID(ctx, req.InstructorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	days, start, end, err := resolveSchedule(req.Days, req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	subject := &models.Subject{
		InstructorID: req.InstructorID,
		Name:         req.Name,
		Code:         req.Code,
		Sections:     req.Sections,
		Room:         req.Room,
		MeetingLink:  req.MeetingLink,
		Description:  req.Description,
		Credits:      req.Credits,
		Days:         days,
		StartTime:    start,
		EndTime:      end,
		SchoolYear:   req.SchoolYear,
		Semester:     semester,
	}

	if err := s.repo.Create(ctx, subject); err != nil {
		if reason, ok := repository.UniqueViolation(err); ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, reason)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update modifies a subject, revalidating any schedule change.
func (s *SubjectService) Update(ctx context.Context, id string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	days, start, end, err := resolveSchedule(req.Days, req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	subject := existing.Subject
	subject.Name = req.Name
	subject.Sections = req.Sections
	subject.Room = req.Room
	subject.MeetingLink = req.MeetingLink
	subject.Description = req.Description
	subject.Credits = req.Credits
	subject.Days = days
	subject.StartTime = start
	subject.EndTime = end

	if err := s.repo.Update(ctx, &subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return &subject, nil
}

// Delete removes a subject that has no attendance history.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	count, err := s.repo.CountAttendanceRecords(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance history")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "subject has attendance records and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

// resolveSchedule normalizes a weekly meeting window. All three parts must be
// present together; an entirely absent schedule is valid.
func resolveSchedule(days []string, startTime, endTime *string) (pq.StringArray, *string, *string, error) {
	hasDays := len(days) > 0
	hasStart := startTime != nil && strings.TrimSpace(*startTime) != ""
	hasEnd := endTime != nil && strings.TrimSpace(*endTime) != ""
	if !hasDays && !hasStart && !hasEnd {
		return nil, nil, nil, nil
	}
	if !hasDays || !hasStart || !hasEnd {
		return nil, nil, nil, errors.New("schedule requires days, start_time, and end_time together")
	}

	for _, d := range days {
		if len(ingest.ParseWeekdays(d)) == 0 {
			return nil, nil, nil, fmt.Errorf("unknown weekday %q", d)
		}
	}
	normalized := ingest.ParseWeekdays(strings.Join(days, ","))

	start, ok := ingest.ParseTimeOfDay(*startTime)
	if !ok {
		return nil, nil, nil, fmt.Errorf("invalid start_time %q", *startTime)
	}
	end, ok := ingest.ParseTimeOfDay(*endTime)
	if !ok {
		return nil, nil, nil, fmt.Errorf("invalid end_time %q", *endTime)
	}
	if _, ok := ingest.DurationMinutes(start, end); !ok {
		return nil, nil, nil, errors.New("end_time must be after start_time")
	}
	return pq.StringArray(normalized), &start, &end, nil
}
