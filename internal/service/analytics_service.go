package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neattend/neattend-api/internal/models"
)

// AnalyticsRepository describes the persistence layer required by AnalyticsService.
type AnalyticsRepository interface {
	Overview(ctx context.Context) (*models.AnalyticsOverview, error)
	AttendanceSummary(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.AnalyticsAttendanceSummary, error)
	StudentStandings(ctx context.Context, filter models.AnalyticsAttendanceFilter, limit int) ([]models.AnalyticsStudentStanding, error)
}

// AnalyticsService provides read-optimised access to attendance aggregates
// with cache integration. New attendance marks invalidate the whole
// "analytics:" key space.
type AnalyticsService struct {
	repo    AnalyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger}
}

// Overview returns headline counts for the admin dashboard. The boolean
// indicates whether data originated from cache.
func (s *AnalyticsService) Overview(ctx context.Context) (*models.AnalyticsOverview, bool, error) {
	cacheKey := makeAnalyticsCacheKey("overview")
	var cached models.AnalyticsOverview
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get overview cache: %w", err)
		} else if hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	overview, err := s.repo.Overview(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_overview", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, overview, 0); err != nil && s.logger != nil {
			s.logger.Warn("cache overview", zap.Error(err))
		}
	}
	return overview, false, nil
}

// Attendance returns per-subject attendance aggregates for the filter window.
func (s *AnalyticsService) Attendance(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.AnalyticsAttendanceSummary, bool, error) {
	cacheKey := makeAnalyticsCacheKey("attendance", filter.SchoolYear, filter.Semester, filter.SubjectID, formatTime(filter.DateFrom), formatTime(filter.DateTo))
	var cached []models.AnalyticsAttendanceSummary
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get attendance cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	summaries, err := s.repo.AttendanceSummary(ctx, filter)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_attendance", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summaries, 0); err != nil && s.logger != nil {
			s.logger.Warn("cache attendance", zap.Error(err))
		}
	}
	return summaries, false, nil
}

// Standings ranks students by attendance percentage, lowest first, so the
// dashboard can surface students at risk.
func (s *AnalyticsService) Standings(ctx context.Context, filter models.AnalyticsAttendanceFilter, limit int) ([]models.AnalyticsStudentStanding, bool, error) {
	cacheKey := makeAnalyticsCacheKey("standings", filter.SchoolYear, filter.Semester, filter.SubjectID, strconv.Itoa(limit))
	var cached []models.AnalyticsStudentStanding
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			return nil, false, fmt.Errorf("get standings cache: %w", err)
		} else if hit {
			return cached, true, nil
		}
	}

	start := time.Now()
	standings, err := s.repo.StudentStandings(ctx, filter, limit)
	if err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_standings", time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, standings, 0); err != nil && s.logger != nil {
			s.logger.Warn("cache standings", zap.Error(err))
		}
	}
	return standings, false, nil
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	if s.metrics == nil {
		return models.AnalyticsSystemMetrics{}
	}
	return s.metrics.Snapshot()
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
