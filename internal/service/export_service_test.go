package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/models"
	"github.com/neattend/neattend-api/pkg/storage"
)

type mockExportSources struct {
	summaries   []models.AnalyticsAttendanceSummary
	students    []models.Student
	instructors []models.Instructor
	subjects    []models.SubjectWithInstructor
}

func (m *mockExportSources) AttendanceSummary(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.AnalyticsAttendanceSummary, error) {
	return m.summaries, nil
}

func (m *mockExportSources) ListForExport(ctx context.Context, schoolYear, semester string) ([]models.Student, error) {
	return m.students, nil
}

type mockInstructorSource struct{ rows []models.Instructor }

func (m *mockInstructorSource) ListForExport(ctx context.Context, schoolYear, semester string) ([]models.Instructor, error) {
	return m.rows, nil
}

type mockSubjectSource struct{ rows []models.SubjectWithInstructor }

func (m *mockSubjectSource) ListForExport(ctx context.Context, schoolYear, semester string) ([]models.SubjectWithInstructor, error) {
	return m.rows, nil
}

func newExportFixture(t *testing.T, sources *mockExportSources, subjects *mockSubjectSource) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(sources, sources, &mockInstructorSource{}, subjects, store, signer,
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop(), nil, nil)
}

func TestExportServiceGenerateAttendanceCSV(t *testing.T) {
	updated := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	sources := &mockExportSources{summaries: []models.AnalyticsAttendanceSummary{
		{SubjectName: "Programming 1", PresentCount: 40, LateCount: 3, AbsentCount: 2, ExcusedCount: 1, Percentage: 93.48, UpdatedAt: &updated},
	}}
	svc := newExportFixture(t, sources, &mockSubjectSource{})

	job := &models.ReportJob{
		ID:   "job-1",
		Type: models.ReportTypeAttendance,
		Params: models.ReportJobParams{
			SchoolYear: "2024-2025",
			Semester:   "1st Semester",
			Format:     models.ReportFormatCSV,
		},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"), result.URL)
	assert.Equal(t, models.ReportFormatCSV, result.Format)

	// Token round-trips through the signer back to the stored file.
	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)

	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	payload, err := io.ReadAll(file)
	require.NoError(t, err)
	content := string(payload)
	assert.Contains(t, content, "Subject,Present,Late,Absent,Excused")
	assert.Contains(t, content, "Programming 1,40,3,2,1,93.48")
}

func TestExportServiceGenerateSubjectDatasetIncludesDuration(t *testing.T) {
	start, end := "07:00", "08:30"
	subjects := &mockSubjectSource{rows: []models.SubjectWithInstructor{{
		Subject: models.Subject{
			Code:      "CS101",
			Name:      "Programming 1",
			Sections:  []string{"BSIT 1A"},
			Days:      []string{"Monday", "Wednesday"},
			StartTime: &start,
			EndTime:   &end,
		},
		InstructorName: "Santos, Liza",
	}}}
	svc := newExportFixture(t, &mockExportSources{}, subjects)

	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeSubjects,
		Params: models.ReportJobParams{SchoolYear: "2024-2025", Format: models.ReportFormatCSV},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	payload, err := io.ReadAll(file)
	require.NoError(t, err)
	content := string(payload)
	assert.Contains(t, content, "Monday/Wednesday 07:00-08:30")
	assert.Contains(t, content, "90 min")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	sources := &mockExportSources{students: []models.Student{
		{StudentNo: "1001", FirstName: "Ana", LastName: "Reyes", Email: "ana@example.com"},
	}}
	svc := newExportFixture(t, sources, &mockSubjectSource{})

	job := &models.ReportJob{
		ID:     "job-3",
		Type:   models.ReportTypeStudents,
		Params: models.ReportJobParams{SchoolYear: "2024-2025", Format: models.ReportFormatPDF},
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.RelativePath, ".pdf"), result.RelativePath)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	header := make([]byte, 4)
	_, err = io.ReadFull(file, header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestExportServiceRejectsUnknownTypeAndFormat(t *testing.T) {
	svc := newExportFixture(t, &mockExportSources{}, &mockSubjectSource{})

	_, err := svc.Generate(context.Background(), &models.ReportJob{
		ID: "x", Type: models.ReportType("grades"),
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
	})
	require.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ReportJob{
		ID: "x", Type: models.ReportTypeStudents,
		Params: models.ReportJobParams{Format: models.ReportFormat("docx")},
	})
	require.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "2024-2025", sanitizeFilename("2024-2025"))
	assert.Equal(t, "sy_2024-2025", sanitizeFilename("sy 2024/2025"))
}
