package models

import "time"

// AnalyticsAttendanceFilter scopes attendance analytics queries.
type AnalyticsAttendanceFilter struct {
	SchoolYear string
	Semester   string
	SubjectID  string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// AnalyticsAttendanceSummary represents aggregated attendance metrics per subject.
type AnalyticsAttendanceSummary struct {
	SubjectID    string     `db:"subject_id" json:"subject_id"`
	SubjectName  string     `db:"subject_name" json:"subject_name"`
	PresentCount int        `db:"present_count" json:"present_count"`
	LateCount    int        `db:"late_count" json:"late_count"`
	AbsentCount  int        `db:"absent_count" json:"absent_count"`
	ExcusedCount int        `db:"excused_count" json:"excused_count"`
	Percentage   float64    `db:"percentage" json:"percentage"`
	UpdatedAt    *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// AnalyticsOverview aggregates headline counts for the admin dashboard.
type AnalyticsOverview struct {
	TotalStudents    int     `db:"total_students" json:"total_students"`
	TotalInstructors int     `db:"total_instructors" json:"total_instructors"`
	TotalSubjects    int     `db:"total_subjects" json:"total_subjects"`
	AttendanceToday  int     `db:"attendance_today" json:"attendance_today"`
	PresentRate      float64 `db:"present_rate" json:"present_rate"`
}

// AnalyticsStudentStanding ranks students by attendance percentage.
type AnalyticsStudentStanding struct {
	StudentID   string  `db:"student_id" json:"student_id"`
	StudentNo   string  `db:"student_no" json:"student_no"`
	StudentName string  `db:"student_name" json:"student_name"`
	Present     int     `db:"present" json:"present"`
	Absent      int     `db:"absent" json:"absent"`
	Percentage  float64 `db:"percentage" json:"percentage"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
