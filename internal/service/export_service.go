package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/ingest"
	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/pkg/export"
	"github.com/neattend/neattend-api/pkg/storage"
)

type attendanceAnalyticsSource interface {
	AttendanceSummary(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.AnalyticsAttendanceSummary, error)
}

type studentExportSource interface {
	ListForExport(ctx context.Context, schoolYear, semester string) ([]models.Student, error)
}

type instructorExportSource interface {
	ListForExport(ctx context.Context, schoolYear, semester string) ([]models.Instructor, error)
}

type subjectExportSource interface {
	ListForExport(ctx context.Context, schoolYear, semester string) ([]models.SubjectWithInstructor, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	analytics   attendanceAnalyticsSource
	students    studentExportSource
	instructors instructorExportSource
	subjects    subjectExportSource
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(analytics attendanceAnalyticsSource, students studentExportSource, instructors instructorExportSource, subjects subjectExportSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		analytics:   analytics,
		students:    students,
		instructors: instructors,
		subjects:    subjects,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	yearPart := sanitizeFilename(job.Params.SchoolYear)
	name := fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), yearPart, timestamp, job.Params.Format)
	return name
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeAttendance:
		return s.buildAttendanceDataset(ctx, job.Params)
	case models.ReportTypeStudents:
		return s.buildStudentDataset(ctx, job.Params)
	case models.ReportTypeInstructors:
		return s.buildInstructorDataset(ctx, job.Params)
	case models.ReportTypeSubjects:
		return s.buildSubjectDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildAttendanceDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.AnalyticsAttendanceFilter{
		SchoolYear: params.SchoolYear,
		Semester:   params.Semester,
		SubjectID:  deref(params.SubjectID),
	}
	if from, err := parseReportDate(params.DateFrom); err == nil {
		filter.DateFrom = from
	}
	if to, err := parseReportDate(params.DateTo); err == nil {
		filter.DateTo = to
	}
	rows, err := s.analytics.AttendanceSummary(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, map[string]string{
			"Subject":        row.SubjectName,
			"Present":        fmt.Sprintf("%d", row.PresentCount),
			"Late":           fmt.Sprintf("%d", row.LateCount),
			"Absent":         fmt.Sprintf("%d", row.AbsentCount),
			"Excused":        fmt.Sprintf("%d", row.ExcusedCount),
			"Attendance (%)": fmt.Sprintf("%.2f", row.Percentage),
			"Updated At":     formatReportTime(row.UpdatedAt),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Subject", "Present", "Late", "Absent", "Excused", "Attendance (%)", "Updated At"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Attendance Summary %s", params.SchoolYear)
	return dataset, title, nil
}

func (s *ExportService) buildStudentDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	students, err := s.students.ListForExport(ctx, params.SchoolYear, params.Semester)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		dataRows = append(dataRows, map[string]string{
			"Student No": st.StudentNo,
			"Name":       st.LastName + ", " + st.FirstName,
			"Email":      st.Email,
			"Phone":      st.Phone,
			"Department": st.Department,
			"Course":     st.Course,
			"Section":    st.Section,
			"Year Level": st.YearLevel,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Student No", "Name", "Email", "Phone", "Department", "Course", "Section", "Year Level"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Student Roster %s", params.SchoolYear)
	return dataset, title, nil
}

func (s *ExportService) buildInstructorDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	instructors, err := s.instructors.ListForExport(ctx, params.SchoolYear, params.Semester)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(instructors))
	for _, in := range instructors {
		dataRows = append(dataRows, map[string]string{
			"Instructor No": in.InstructorNo,
			"Name":          in.LastName + ", " + in.FirstName,
			"Email":         in.Email,
			"Phone":         in.Phone,
			"Department":    in.Department,
			"Course":        in.Course,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Instructor No", "Name", "Email", "Phone", "Department", "Course"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Instructor Roster %s", params.SchoolYear)
	return dataset, title, nil
}

func (s *ExportService) buildSubjectDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	subjects, err := s.subjects.ListForExport(ctx, params.SchoolYear, params.Semester)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(subjects))
	for _, sub := range subjects {
		row := map[string]string{
			"Code":       sub.Code,
			"Subject":    sub.Name,
			"Instructor": sub.InstructorName,
			"Sections":   strings.Join(sub.Sections, ", "),
			"Schedule":   formatSchedule(sub.Subject),
			"Duration":   "",
		}
		if sub.HasSchedule() {
			if minutes, ok := ingest.DurationMinutes(*sub.StartTime, *sub.EndTime); ok {
				row["Duration"] = fmt.Sprintf("%d min", minutes)
			}
		}
		dataRows = append(dataRows, row)
	}
	dataset := export.Dataset{
		Headers: []string{"Code", "Subject", "Instructor", "Sections", "Schedule", "Duration"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Subject Offerings %s", params.SchoolYear)
	return dataset, title, nil
}

func formatSchedule(sub models.Subject) string {
	if !sub.HasSchedule() {
		return ""
	}
	return fmt.Sprintf("%s %s-%s", strings.Join(sub.Days, "/"), *sub.StartTime, *sub.EndTime)
}

func parseReportDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
