package models

import (
	"time"

	"github.com/lib/pq"
)

// Canonical semester labels accepted across the system.
const (
	SemesterFirst  = "1st Semester"
	SemesterSecond = "2nd Semester"
	SemesterSummer = "Summer"
)

// ValidSemester returns true when the label is one of the canonical values.
func ValidSemester(s string) bool {
	switch s {
	case SemesterFirst, SemesterSecond, SemesterSummer:
		return true
	default:
		return false
	}
}

// Subject represents a subject assignment taught by an instructor.
// Days holds canonical weekday names; StartTime and EndTime are 24-hour
// HH:MM strings. All three are nil/empty when no weekly schedule is set.
type Subject struct {
	ID           string         `db:"id" json:"id"`
	InstructorID string         `db:"instructor_id" json:"instructor_id"`
	Name         string         `db:"name" json:"name"`
	Code         string         `db:"code" json:"code"`
	Sections     pq.StringArray `db:"sections" json:"sections"`
	Room         *string        `db:"room" json:"room,omitempty"`
	MeetingLink  *string        `db:"meeting_link" json:"meeting_link,omitempty"`
	Description  *string        `db:"description" json:"description,omitempty"`
	Credits      *int           `db:"credits" json:"credits,omitempty"`
	Days         pq.StringArray `db:"days" json:"days,omitempty"`
	StartTime    *string        `db:"start_time" json:"start_time,omitempty"`
	EndTime      *string        `db:"end_time" json:"end_time,omitempty"`
	SchoolYear   string         `db:"school_year" json:"school_year"`
	Semester     string         `db:"semester" json:"semester"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasSchedule reports whether a weekly meeting window is fully set.
func (s Subject) HasSchedule() bool {
	return len(s.Days) > 0 && s.StartTime != nil && s.EndTime != nil
}

// SubjectWithInstructor extends the subject row with instructor metadata.
type SubjectWithInstructor struct {
	Subject
	InstructorName  string `db:"instructor_name" json:"instructor_name"`
	InstructorEmail string `db:"instructor_email" json:"instructor_email"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	InstructorID string
	SchoolYear   string
	Semester     string
	Day          string
	Section      string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
