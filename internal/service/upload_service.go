package service

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/neattend/neattend-api/internal/dto"
	"github.com/neattend/neattend-api/internal/ingest"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/internal/repository"
	"github.com/neattend/neattend-api/pkg/config"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type studentBulkStore interface {
	BulkCreate(ctx context.Context, batch []repository.StudentOnboarding) []repository.BulkFailure
}

type instructorBulkStore interface {
	BulkCreate(ctx context.Context, batch []repository.InstructorOnboarding) []repository.BulkFailure
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type onboardingNotifier interface {
	NotifyCredentials(notices []CredentialNotice)
	NotifyUploadSummary(toName, toAddress, kind string, summary dto.UploadSummary)
}

// UploadRequest carries one submitted spreadsheet through the pipeline.
type UploadRequest struct {
	Filename   string
	Data       []byte
	DryRun     bool
	ActorID    string
	ActorName  string
	ActorEmail string
	IP         string
	UserAgent  string
}

// UploadService runs the bulk onboarding pipelines: read the sheet, validate
// and normalize every row, persist what survived, and merge persistence
// failures back into the per-row error list. A sheet where every row fails
// still returns a summary, not an error; only unreadable files and missing
// required columns abort.
type UploadService struct {
	students    studentBulkStore
	instructors instructorBulkStore
	audit       auditRecorder
	notifier    onboardingNotifier
	cfg         config.UploadsConfig
	logger      *zap.Logger
}

// NewUploadService constructs the upload service. The notifier may be nil
// when credential notifications are disabled.
func NewUploadService(students studentBulkStore, instructors instructorBulkStore, audit auditRecorder, notifier onboardingNotifier, cfg config.UploadsConfig, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		students:    students,
		instructors: instructors,
		audit:       audit,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger,
	}
}

// UploadStudents ingests a student sheet and onboards every valid row with a
// login account. Students always receive the generated password.
func (s *UploadService) UploadStudents(ctx context.Context, req UploadRequest) (*dto.UploadSummary, error) {
	if err := s.checkFile(req); err != nil {
		return nil, err
	}

	result, err := ingest.ParseStudentFile(req.Filename, req.Data)
	if err != nil {
		return nil, err
	}

	summary := &dto.UploadSummary{
		TotalRows: len(result.Records) + len(result.RowErrors),
		DryRun:    req.DryRun,
		RowErrors: result.RowErrors,
	}
	if req.DryRun {
		summary.CreatedCount = len(result.Records)
		sortRowErrors(summary.RowErrors)
		summary.FailedCount = len(summary.RowErrors)
		return summary, nil
	}

	batch := make([]repository.StudentOnboarding, 0, len(result.Records))
	notices := make([]CredentialNotice, 0, len(result.Records))
	for _, record := range result.Records {
		hash, err := bcrypt.GenerateFromPassword([]byte(record.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash onboarding password")
		}
		student := &models.Student{
			StudentNo:        record.StudentNo,
			FirstName:        record.FirstName,
			LastName:         record.LastName,
			Email:            strings.ToLower(record.Email),
			Phone:            record.Phone,
			SchoolYear:       record.SchoolYear,
			Semester:         record.Semester,
			Department:       record.Department,
			Course:           record.Course,
			Section:          record.Section,
			YearLevel:        record.YearLevel,
			DateOfBirth:      record.DateOfBirth,
			Address:          optional(record.Address),
			GuardianName:     optional(record.GuardianName),
			GuardianPhone:    optional(record.GuardianPhone),
			EmergencyContact: optional(record.EmergencyContact),
			Active:           true,
		}
		account := &models.User{
			Email:        student.Email,
			FullName:     student.FirstName + " " + student.LastName,
			Role:         models.RoleStudent,
			Active:       true,
			PasswordHash: string(hash),
		}
		batch = append(batch, repository.StudentOnboarding{Student: student, Account: account})
		notices = append(notices, CredentialNotice{
			Name:       student.FirstName + " " + student.LastName,
			Email:      student.Email,
			Identifier: student.StudentNo,
			Password:   record.Password,
			Role:       models.RoleStudent,
		})
	}

	failures := s.students.BulkCreate(ctx, batch)
	failed := make(map[int]struct{}, len(failures))
	for _, failure := range failures {
		failed[failure.Index] = struct{}{}
		summary.RowErrors = append(summary.RowErrors, ingest.RowError{
			RowIndex: result.Records[failure.Index].RowIndex,
			Errors:   []string{failure.Reason},
		})
	}
	sortRowErrors(summary.RowErrors)
	summary.CreatedCount = len(batch) - len(failures)
	summary.FailedCount = len(summary.RowErrors)

	created := notices[:0]
	for i, notice := range notices {
		if _, ok := failed[i]; ok {
			continue
		}
		created = append(created, notice)
	}
	s.finish(ctx, req, models.AuditActionStudentUpload, "students", *summary, created)
	return summary, nil
}

// UploadInstructors ingests an instructor sheet: rows are grouped per
// instructor and each group is persisted with its subject load in one
// transaction. Explicit sheet passwords win over generated ones; either way
// the credential that was stored is the one mailed out.
func (s *UploadService) UploadInstructors(ctx context.Context, req UploadRequest) (*dto.UploadSummary, error) {
	if err := s.checkFile(req); err != nil {
		return nil, err
	}

	result, err := ingest.ParseInstructorFile(req.Filename, req.Data)
	if err != nil {
		return nil, err
	}

	rowCount := len(result.RowErrors)
	for _, record := range result.Records {
		rowCount += len(record.Subjects)
	}
	summary := &dto.UploadSummary{
		TotalRows: rowCount,
		DryRun:    req.DryRun,
		RowErrors: result.RowErrors,
	}
	if req.DryRun {
		summary.CreatedCount = len(result.Records)
		sortRowErrors(summary.RowErrors)
		summary.FailedCount = len(summary.RowErrors)
		return summary, nil
	}

	batch := make([]repository.InstructorOnboarding, 0, len(result.Records))
	notices := make([]CredentialNotice, 0, len(result.Records))
	for _, record := range result.Records {
		hash, err := bcrypt.GenerateFromPassword([]byte(record.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash onboarding password")
		}
		instructor := &models.Instructor{
			InstructorNo:   record.InstructorNo,
			FirstName:      record.FirstName,
			LastName:       record.LastName,
			Email:          strings.ToLower(record.Email),
			Phone:          record.Phone,
			SchoolYear:     record.SchoolYear,
			Semester:       record.Semester,
			Department:     record.Department,
			Course:         record.Course,
			Experience:     optional(record.Experience),
			Specialization: optional(record.Specialization),
			Active:         true,
		}
		account := &models.User{
			Email:        instructor.Email,
			FullName:     instructor.FirstName + " " + instructor.LastName,
			Role:         models.RoleInstructor,
			Active:       true,
			PasswordHash: string(hash),
		}
		subjects := make([]models.Subject, 0, len(record.Subjects))
		for _, sub := range record.Subjects {
			subject := models.Subject{
				Name:        sub.Name,
				Code:        sub.Code,
				Sections:    sub.Sections,
				Room:        optional(sub.Room),
				MeetingLink: optional(sub.MeetingLink),
				Description: optional(sub.Description),
				SchoolYear:  record.SchoolYear,
				Semester:    record.Semester,
			}
			if sub.Units > 0 {
				units := sub.Units
				subject.Credits = &units
			}
			if sub.Schedule != nil {
				subject.Days = sub.Schedule.Days
				start := sub.Schedule.StartTime
				end := sub.Schedule.EndTime
				subject.StartTime = &start
				subject.EndTime = &end
			}
			subjects = append(subjects, subject)
		}
		batch = append(batch, repository.InstructorOnboarding{Instructor: instructor, Account: account, Subjects: subjects})
		notices = append(notices, CredentialNotice{
			Name:       instructor.FirstName + " " + instructor.LastName,
			Email:      instructor.Email,
			Identifier: instructor.InstructorNo,
			Password:   record.Password,
			Role:       models.RoleInstructor,
		})
	}

	failures := s.instructors.BulkCreate(ctx, batch)
	failed := make(map[int]struct{}, len(failures))
	for _, failure := range failures {
		failed[failure.Index] = struct{}{}
		summary.RowErrors = append(summary.RowErrors, ingest.RowError{
			RowIndex: result.Records[failure.Index].RowIndex,
			Errors:   []string{failure.Reason},
		})
	}
	sortRowErrors(summary.RowErrors)
	summary.CreatedCount = len(batch) - len(failures)
	summary.FailedCount = len(summary.RowErrors)

	created := notices[:0]
	for i, notice := range notices {
		if _, ok := failed[i]; ok {
			continue
		}
		created = append(created, notice)
	}
	s.finish(ctx, req, models.AuditActionInstructorUpload, "instructors", *summary, created)
	return summary, nil
}

func (s *UploadService) checkFile(req UploadRequest) error {
	if len(req.Data) == 0 {
		return appErrors.Clone(appErrors.ErrUnreadableFile, "uploaded file is empty")
	}
	if s.cfg.MaxFileSizeBytes > 0 && int64(len(req.Data)) > s.cfg.MaxFileSizeBytes {
		return appErrors.ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))
	allowed := s.cfg.AllowedExtensions
	if len(allowed) == 0 {
		allowed = []string{".csv", ".xlsx"}
	}
	for _, candidate := range allowed {
		if ext == strings.ToLower(strings.TrimSpace(candidate)) {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrUnsupportedFile, "unsupported file type "+ext+", expected one of "+strings.Join(allowed, ", "))
}

// finish records the audit trail and hands created credentials to the
// notifier. Neither step can fail the upload; the records are committed.
func (s *UploadService) finish(ctx context.Context, req UploadRequest, action, resource string, summary dto.UploadSummary, created []CredentialNotice) {
	if s.audit != nil {
		var actorID *string
		if req.ActorID != "" {
			actorID = &req.ActorID
		}
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:    actorID,
			Action:    action,
			Resource:  resource,
			IPAddress: req.IP,
			UserAgent: req.UserAgent,
		}); err != nil {
			s.logger.Warn("upload audit log failed", zap.String("action", action), zap.Error(err))
		}
	}
	if s.notifier == nil {
		return
	}
	if len(created) > 0 {
		s.notifier.NotifyCredentials(created)
	}
	if req.ActorEmail != "" {
		s.notifier.NotifyUploadSummary(req.ActorName, req.ActorEmail, resource, summary)
	}
}

func optional(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func sortRowErrors(errs []ingest.RowError) {
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].RowIndex < errs[j].RowIndex })
}
