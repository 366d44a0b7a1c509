package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/models"
	appErrors "github.com/neattend/neattend-api/pkg/errors"
)

type mockAnalyticsRepo struct {
	overview      *models.AnalyticsOverview
	summaries     []models.AnalyticsAttendanceSummary
	standings     []models.AnalyticsStudentStanding
	overviewCalls int
	summaryCalls  int
	standingCalls int
	lastLimit     int
}

func (m *mockAnalyticsRepo) Overview(ctx context.Context) (*models.AnalyticsOverview, error) {
	m.overviewCalls++
	return m.overview, nil
}

func (m *mockAnalyticsRepo) AttendanceSummary(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.AnalyticsAttendanceSummary, error) {
	m.summaryCalls++
	return m.summaries, nil
}

func (m *mockAnalyticsRepo) StudentStandings(ctx context.Context, filter models.AnalyticsAttendanceFilter, limit int) ([]models.AnalyticsStudentStanding, error) {
	m.standingCalls++
	m.lastLimit = limit
	return m.standings, nil
}

// memoryCacheRepo backs CacheService with a map, round-tripping values
// through JSON the way the redis repository does.
type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.entries = make(map[string][]byte)
	return nil
}

func TestAnalyticsOverviewCacheAside(t *testing.T) {
	repo := &mockAnalyticsRepo{overview: &models.AnalyticsOverview{TotalStudents: 120, PresentRate: 91.5}}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, cache, nil, zap.NewNop())

	first, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 120, first.TotalStudents)

	second, hit, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, hit, "second read is served from cache")
	assert.Equal(t, first.TotalStudents, second.TotalStudents)
	assert.Equal(t, 1, repo.overviewCalls)
}

func TestAnalyticsAttendanceCacheKeyVariesByFilter(t *testing.T) {
	repo := &mockAnalyticsRepo{summaries: []models.AnalyticsAttendanceSummary{{SubjectID: "sub-1", Percentage: 88}}}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewAnalyticsService(repo, cache, nil, zap.NewNop())

	_, hit, err := svc.Attendance(context.Background(), models.AnalyticsAttendanceFilter{SchoolYear: "2024-2025"})
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = svc.Attendance(context.Background(), models.AnalyticsAttendanceFilter{SchoolYear: "2024-2025"})
	require.NoError(t, err)
	assert.True(t, hit)

	_, hit, err = svc.Attendance(context.Background(), models.AnalyticsAttendanceFilter{SchoolYear: "2025-2026"})
	require.NoError(t, err)
	assert.False(t, hit, "different school year misses")
	assert.Equal(t, 2, repo.summaryCalls)
}

func TestAnalyticsStandingsWithoutCache(t *testing.T) {
	repo := &mockAnalyticsRepo{standings: []models.AnalyticsStudentStanding{{StudentID: "s1", Percentage: 42}}}
	svc := NewAnalyticsService(repo, nil, nil, zap.NewNop())

	standings, hit, err := svc.Standings(context.Background(), models.AnalyticsAttendanceFilter{}, 10)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, standings, 1)
	assert.Equal(t, 10, repo.lastLimit)

	_, hit, err = svc.Standings(context.Background(), models.AnalyticsAttendanceFilter{}, 10)
	require.NoError(t, err)
	assert.False(t, hit, "no cache service means every read hits the database")
	assert.Equal(t, 2, repo.standingCalls)
}

func TestMakeAnalyticsCacheKey(t *testing.T) {
	assert.Equal(t, "analytics:overview", makeAnalyticsCacheKey("overview"))
	assert.Equal(t, "analytics:attendance:2024-2025", makeAnalyticsCacheKey("attendance", "2024-2025", ""))
	assert.Equal(t, "analytics:standings:a|b", makeAnalyticsCacheKey("standings", "a:b"),
		"colons inside filter values cannot fake key segments")
}
