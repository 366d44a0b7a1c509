package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/neattend/neattend-api/internal/models"
)

// AnalyticsRepository exposes read-optimised queries for analytics endpoints.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Overview returns headline counts for the admin dashboard.
func (r *AnalyticsRepository) Overview(ctx context.Context) (*models.AnalyticsOverview, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students WHERE active = TRUE) AS total_students,
        (SELECT COUNT(*) FROM instructors WHERE active = TRUE) AS total_instructors,
        (SELECT COUNT(*) FROM subjects) AS total_subjects,
        (SELECT COUNT(*) FROM attendance_records WHERE date = CURRENT_DATE) AS attendance_today,
        COALESCE((SELECT SUM(CASE WHEN status IN ('PRESENT', 'LATE') THEN 1 ELSE 0 END)::DECIMAL / NULLIF(COUNT(*), 0) * 100 FROM attendance_records WHERE date = CURRENT_DATE), 0) AS present_rate`
	var overview models.AnalyticsOverview
	if err := r.db.GetContext(ctx, &overview, query); err != nil {
		return nil, fmt.Errorf("query analytics overview: %w", err)
	}
	return &overview, nil
}

// AttendanceSummary aggregates attendance per subject for the filter window.
func (r *AnalyticsRepository) AttendanceSummary(ctx context.Context, filter models.AnalyticsAttendanceFilter) ([]models.AnalyticsAttendanceSummary, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT su.id AS subject_id, su.name AS subject_name,
        SUM(CASE WHEN ar.status = 'PRESENT' THEN 1 ELSE 0 END) AS present_count,
        SUM(CASE WHEN ar.status = 'LATE' THEN 1 ELSE 0 END) AS late_count,
        SUM(CASE WHEN ar.status = 'ABSENT' THEN 1 ELSE 0 END) AS absent_count,
        SUM(CASE WHEN ar.status = 'EXCUSED' THEN 1 ELSE 0 END) AS excused_count,
        CASE WHEN COUNT(*) = 0 THEN 0 ELSE (SUM(CASE WHEN ar.status IN ('PRESENT', 'LATE') THEN 1 ELSE 0 END)::DECIMAL / COUNT(*)) * 100 END AS percentage,
        MAX(ar.updated_at) AS updated_at
        FROM attendance_records ar
        JOIN subjects su ON su.id = ar.subject_id
        WHERE 1=1`)
	var args []interface{}
	if filter.SchoolYear != "" {
		args = append(args, filter.SchoolYear)
		builder.WriteString(fmt.Sprintf(" AND su.school_year = $%d", len(args)))
	}
	if filter.Semester != "" {
		args = append(args, filter.Semester)
		builder.WriteString(fmt.Sprintf(" AND su.semester = $%d", len(args)))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		builder.WriteString(fmt.Sprintf(" AND ar.subject_id = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND ar.date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND ar.date <= $%d", len(args)))
	}
	builder.WriteString(" GROUP BY su.id, su.name ORDER BY percentage DESC")

	var summaries []models.AnalyticsAttendanceSummary
	if err := r.db.SelectContext(ctx, &summaries, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query attendance analytics: %w", err)
	}
	return summaries, nil
}

// StudentStandings ranks students by attendance percentage, lowest first,
// so the endpoint surfaces students at risk.
func (r *AnalyticsRepository) StudentStandings(ctx context.Context, filter models.AnalyticsAttendanceFilter, limit int) ([]models.AnalyticsStudentStanding, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var builder strings.Builder
	builder.WriteString(`SELECT st.id AS student_id, st.student_no, st.first_name || ' ' || st.last_name AS student_name,
        SUM(CASE WHEN ar.status IN ('PRESENT', 'LATE') THEN 1 ELSE 0 END) AS present,
        SUM(CASE WHEN ar.status = 'ABSENT' THEN 1 ELSE 0 END) AS absent,
        CASE WHEN COUNT(*) = 0 THEN 0 ELSE (SUM(CASE WHEN ar.status IN ('PRESENT', 'LATE') THEN 1 ELSE 0 END)::DECIMAL / COUNT(*)) * 100 END AS percentage
        FROM attendance_records ar
        JOIN students st ON st.id = ar.student_id
        JOIN subjects su ON su.id = ar.subject_id
        WHERE 1=1`)
	var args []interface{}
	if filter.SchoolYear != "" {
		args = append(args, filter.SchoolYear)
		builder.WriteString(fmt.Sprintf(" AND su.school_year = $%d", len(args)))
	}
	if filter.Semester != "" {
		args = append(args, filter.Semester)
		builder.WriteString(fmt.Sprintf(" AND su.semester = $%d", len(args)))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		builder.WriteString(fmt.Sprintf(" AND ar.subject_id = $%d", len(args)))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		builder.WriteString(fmt.Sprintf(" AND ar.date >= $%d", len(args)))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		builder.WriteString(fmt.Sprintf(" AND ar.date <= $%d", len(args)))
	}
	args = append(args, limit)
	builder.WriteString(fmt.Sprintf(" GROUP BY st.id, st.student_no, st.first_name, st.last_name ORDER BY percentage ASC LIMIT $%d", len(args)))

	var standings []models.AnalyticsStudentStanding
	if err := r.db.SelectContext(ctx, &standings, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("query student standings: %w", err)
	}
	return standings, nil
}
