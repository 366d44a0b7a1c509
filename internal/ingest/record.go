package ingest

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/neattend/neattend-api/internal/models"
)

// StudentRecord is the canonical output of the student pipeline. RowIndex is
// the zero-based source row the record came from, kept so persistence
// failures can be attributed back to spreadsheet rows.
type StudentRecord struct {
	RowIndex         int       `json:"rowIndex"`
	StudentNo        string    `json:"studentNo"`
	FirstName        string    `json:"firstName"`
	LastName         string    `json:"lastName"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	SchoolYear       string    `json:"schoolYear"`
	Semester         string    `json:"semester"`
	Department       string    `json:"department"`
	Course           string    `json:"course"`
	Section          string    `json:"section"`
	YearLevel        string    `json:"yearLevel"`
	DateOfBirth      time.Time `json:"dateOfBirth"`
	Address          string    `json:"address,omitempty"`
	GuardianName     string    `json:"guardianName,omitempty"`
	GuardianPhone    string    `json:"guardianPhone,omitempty"`
	EmergencyContact string    `json:"emergencyContact,omitempty"`
	Password         string    `json:"password"`
}

// InstructorRecord is the canonical output of the instructor pipeline after
// grouping. RowIndex refers to the first source row of the group.
type InstructorRecord struct {
	RowIndex       int             `json:"rowIndex"`
	InstructorNo   string          `json:"instructorNo"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	SchoolYear     string          `json:"schoolYear"`
	Semester       string          `json:"semester"`
	Department     string          `json:"department"`
	Course         string          `json:"course"`
	Experience     string          `json:"experience,omitempty"`
	Specialization string          `json:"specialization,omitempty"`
	Password       string          `json:"password"`
	Subjects       []SubjectRecord `json:"subjects"`
}

// SubjectRecord captures one subject assignment contributed by one source
// row of an instructor sheet.
type SubjectRecord struct {
	Name        string          `json:"subjectName"`
	Code        string          `json:"subjectCode"`
	Sections    []string        `json:"sections"`
	Room        string          `json:"room,omitempty"`
	MeetingLink string          `json:"meetingLink,omitempty"`
	Description string          `json:"description,omitempty"`
	Units       int             `json:"units,omitempty"`
	Schedule    *ScheduleRecord `json:"schedule,omitempty"`
}

// ScheduleRecord is a weekly meeting window: a non-empty set of canonical
// weekday names plus 24-hour HH:MM start and end times, end strictly later
// than start.
type ScheduleRecord struct {
	Days      []string `json:"days"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
}

// GeneratePassword derives the onboarding password from the first name and
// identifier: first letter capitalized, rest lowercased, then "@" and the
// identifier. GeneratePassword("john", "12345") is always "John@12345".
func GeneratePassword(firstName, id string) string {
	name := strings.TrimSpace(firstName)
	id = strings.TrimSpace(id)
	if name == "" {
		return "@" + id
	}
	runes := []rune(strings.ToLower(name))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes) + "@" + id
}

// NormalizeSemester maps free text onto the three canonical semester labels
// by keyword matching. Unmatched input passes through trimmed so downstream
// enum validation rejects it instead of the pipeline guessing.
func NormalizeSemester(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lowered := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lowered, "1st"), strings.Contains(lowered, "first"), lowered == "1":
		return models.SemesterFirst
	case strings.Contains(lowered, "2nd"), strings.Contains(lowered, "second"), lowered == "2":
		return models.SemesterSecond
	case strings.Contains(lowered, "summer"):
		return models.SemesterSummer
	default:
		return trimmed
	}
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitList splits a multi-value cell on commas, semicolons, and slashes,
// trimming each entry. Whitespace is not a separator here; section names
// contain spaces.
func splitList(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '/'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
