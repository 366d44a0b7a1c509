package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/models"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type mockAttendanceRepo struct {
	upserted     []*models.AttendanceRecord
	bulkRecords  []models.AttendanceRecord
	bulkAtomic   bool
	conflicts    []models.AttendanceBulkConflict
	bulkErr      error
	summary      *models.AttendanceSummary
	historyRows  []models.AttendanceRecord
	listRows     []models.AttendanceRecordDetail
	listTotal    int
	lastFilter   models.AttendanceFilter
	historyCalls int
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	m.lastFilter = filter
	return m.listRows, m.listTotal, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	m.upserted = append(m.upserted, record)
	stored := *record
	stored.ID = "a1"
	return &stored, nil
}

func (m *mockAttendanceRepo) BulkMark(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceBulkConflict, error) {
	m.bulkRecords = records
	m.bulkAtomic = atomic
	if m.bulkErr != nil {
		return nil, m.bulkErr
	}
	return m.conflicts, nil
}

func (m *mockAttendanceRepo) Summary(ctx context.Context, filter models.AttendanceFilter) (*models.AttendanceSummary, error) {
	m.lastFilter = filter
	return m.summary, nil
}

func (m *mockAttendanceRepo) StudentHistory(ctx context.Context, studentID, subjectID string, from, to *time.Time) ([]models.AttendanceRecord, error) {
	m.historyCalls++
	return m.historyRows, nil
}

type mockInvalidator struct {
	calls int
}

func (m *mockInvalidator) InvalidateAnalytics(ctx context.Context) {
	m.calls++
}

func TestAttendanceServiceMark(t *testing.T) {
	repo := &mockAttendanceRepo{}
	inv := &mockInvalidator{}
	svc := NewAttendanceService(repo, inv, validator.New(), zap.NewNop())

	stored, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		SubjectID:  "sub1",
		StudentID:  "stu1",
		Date:       "2025-09-01",
		Status:     "present",
		RecordedBy: "actor",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, stored.Status)
	assert.Equal(t, "actor", stored.RecordedBy)
	assert.Equal(t, 1, inv.calls)
}

func TestAttendanceServiceMarkRejectsBadDate(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		SubjectID: "sub1",
		StudentID: "stu1",
		Date:      "01/09/2025",
		Status:    "PRESENT",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceBulkMarkPartial(t *testing.T) {
	repo := &mockAttendanceRepo{conflicts: []models.AttendanceBulkConflict{
		{StudentID: "stu2", SubjectID: "sub1", Reason: "already marked for this date"},
	}}
	inv := &mockInvalidator{}
	svc := NewAttendanceService(repo, inv, validator.New(), zap.NewNop())

	result, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		SubjectID: "sub1",
		Date:      "2025-09-01",
		Mode:      "partialOnError",
		Items: []BulkAttendanceItem{
			{StudentID: "stu1", Status: "PRESENT"},
			{StudentID: "stu2", Status: "LATE"},
		},
	})
	require.NoError(t, err)
	assert.False(t, repo.bulkAtomic)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Success)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "stu2", result.Conflicts[0].StudentID)
	assert.Equal(t, 1, inv.calls)
}

func TestAttendanceServiceBulkMarkAtomicFailure(t *testing.T) {
	repo := &mockAttendanceRepo{bulkErr: errors.New("bulk attendance: duplicate for student stu1 on 2025-09-01")}
	svc := NewAttendanceService(repo, nil, validator.New(), zap.NewNop())

	_, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		SubjectID: "sub1",
		Date:      "2025-09-01",
		Mode:      "atomic",
		Items:     []BulkAttendanceItem{{StudentID: "stu1", Status: "PRESENT"}},
	})
	require.Error(t, err)
	assert.True(t, repo.bulkAtomic)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceBulkMarkRejectsDuplicateEntry(t *testing.T) {
	svc := NewAttendanceService(&mockAttendanceRepo{}, nil, validator.New(), zap.NewNop())

	_, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		SubjectID: "sub1",
		Date:      "2025-09-01",
		Mode:      "atomic",
		Items: []BulkAttendanceItem{
			{StudentID: "stu1", Status: "PRESENT"},
			{StudentID: "stu1", Status: "LATE"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceSummaryFilters(t *testing.T) {
	repo := &mockAttendanceRepo{summary: &models.AttendanceSummary{Present: 18, Late: 1, Absent: 1, Total: 20, Percent: 95}}
	svc := NewAttendanceService(repo, nil, validator.New(), zap.NewNop())

	summary, err := svc.Summary(context.Background(), AttendanceListRequest{SubjectID: "sub1", Section: "A"})
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Total)
	assert.Equal(t, "sub1", repo.lastFilter.SubjectID)
	assert.Equal(t, "A", repo.lastFilter.Section)
}
