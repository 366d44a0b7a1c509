package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/models"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	BulkMark(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceBulkConflict, error)
	Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error)
	StudentHistory(ctx context.Context, studentID, subjectID string, from, to *time.Time) ([]models.AttendanceRecord, error)
}

type attendanceCacheInvalidator interface {
	InvalidateAnalytics(ctx context.Context)
}

// AttendanceService coordinates attendance workflows.
type AttendanceService struct {
	repo      attendanceRepository
	cache     attendanceCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service. The cache
// invalidator may be nil when caching is disabled.
func NewAttendanceService(repo attendanceRepository, cache attendanceCacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, cache: cache, validator: validate, logger: logger}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		status := models.AttendanceStatus(strings.ToUpper(fl.Field().String()))
		return status.Valid()
	})
	svc.validator.RegisterValidation("bulk_mode", func(fl validator.FieldLevel) bool {
		switch models.BulkOperationMode(fl.Field().String()) {
		case models.BulkModeAtomic, models.BulkModePartialOnError:
			return true
		default:
			return false
		}
	})
	return svc
}

// AttendanceListRequest is used for listing attendance records.
type AttendanceListRequest struct {
	SubjectID string     `json:"subject_id"`
	StudentID string     `json:"student_id"`
	Section   string     `json:"section"`
	Status    *string    `json:"status" validate:"omitempty,attendance_status"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

// MarkAttendanceRequest describes payload for marking one record.
type MarkAttendanceRequest struct {
	SubjectID  string  `json:"subject_id" validate:"required"`
	StudentID  string  `json:"student_id" validate:"required"`
	Date       string  `json:"date" validate:"required"`
	Status     string  `json:"status" validate:"required,attendance_status"`
	TimeIn     *string `json:"time_in"`
	Notes      *string `json:"notes"`
	RecordedBy string  `json:"-"`
}

// BulkAttendanceItem holds one entry of a bulk mark payload.
type BulkAttendanceItem struct {
	StudentID string  `json:"student_id" validate:"required"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	TimeIn    *string `json:"time_in"`
	Notes     *string `json:"notes"`
}

// BulkMarkAttendanceRequest describes the bulk mark payload.
type BulkMarkAttendanceRequest struct {
	SubjectID  string               `json:"subject_id" validate:"required"`
	Date       string               `json:"date" validate:"required"`
	Mode       string               `json:"mode" validate:"required,bulk_mode"`
	Items      []BulkAttendanceItem `json:"items" validate:"required,min=1,dive"`
	RecordedBy string               `json:"-"`
}

// BulkAttendanceResult summarises bulk execution.
type BulkAttendanceResult struct {
	Processed int                             `json:"processed"`
	Success   int                             `json:"success"`
	Conflicts []models.AttendanceBulkConflict `json:"conflicts,omitempty"`
}

// List returns paginated attendance records with student and subject info.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.AttendanceRecordDetail, *models.Pagination, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	var status *models.AttendanceStatus
	if req.Status != nil {
		st := models.AttendanceStatus(strings.ToUpper(*req.Status))
		status = &st
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 50
	}
	filter := models.AttendanceFilter{
		SubjectID: req.SubjectID,
		StudentID: req.StudentID,
		Section:   req.Section,
		Status:    status,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Page:      page,
		PageSize:  size,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return rows, pagination, nil
}

// Mark records a single student's attendance for a subject meeting. Marking
// the same student, subject, and date again overwrites the stored status.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	record := &models.AttendanceRecord{
		SubjectID:  req.SubjectID,
		StudentID:  req.StudentID,
		Date:       date,
		Status:     models.AttendanceStatus(strings.ToUpper(req.Status)),
		TimeIn:     req.TimeIn,
		Notes:      req.Notes,
		RecordedBy: req.RecordedBy,
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	s.invalidate(ctx)
	return stored, nil
}

// BulkMark records attendance for multiple students of one subject meeting.
func (s *AttendanceService) BulkMark(ctx context.Context, req BulkMarkAttendanceRequest) (*BulkAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
	}
	mode := models.BulkOperationMode(req.Mode)
	seen := map[string]struct{}{}
	records := make([]models.AttendanceRecord, len(req.Items))
	for i, item := range req.Items {
		key := fmt.Sprintf("%s|%s", item.StudentID, date.Format("2006-01-02"))
		if _, ok := seen[key]; ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate student in payload")
		}
		seen[key] = struct{}{}
		records[i] = models.AttendanceRecord{
			SubjectID:  req.SubjectID,
			StudentID:  item.StudentID,
			Date:       date,
			Status:     models.AttendanceStatus(strings.ToUpper(item.Status)),
			TimeIn:     item.TimeIn,
			Notes:      item.Notes,
			RecordedBy: req.RecordedBy,
		}
	}
	conflicts, err := s.repo.BulkMark(ctx, records, mode == models.BulkModeAtomic)
	if err != nil {
		if mode == models.BulkModeAtomic {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, err.Error())
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk mark failed")
	}
	s.invalidate(ctx)
	result := &BulkAttendanceResult{Processed: len(records), Success: len(records) - len(conflicts)}
	if len(conflicts) > 0 {
		result.Conflicts = conflicts
	}
	return result, nil
}

// Summary aggregates attendance counts for the given scope.
func (s *AttendanceService) Summary(ctx context.Context, req AttendanceListRequest) (*models.AttendanceSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter")
	}
	var status *models.AttendanceStatus
	if req.Status != nil {
		st := models.AttendanceStatus(strings.ToUpper(*req.Status))
		status = &st
	}
	filter := models.AttendanceFilter{
		SubjectID: req.SubjectID,
		StudentID: req.StudentID,
		Section:   req.Section,
		Status:    status,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
	}
	summary, err := s.repo.Summary(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarise attendance")
	}
	return summary, nil
}

// StudentHistory returns a student's attendance records, optionally scoped to
// one subject and a date window.
func (s *AttendanceService) StudentHistory(ctx context.Context, studentID, subjectID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}
	rows, err := s.repo.StudentHistory(ctx, studentID, subjectID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance history")
	}
	return rows, nil
}

func (s *AttendanceService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateAnalytics(ctx)
}
