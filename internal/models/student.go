package models

import "time"

// Student represents a learner registered through onboarding.
type Student struct {
	ID               string    `db:"id" json:"id"`
	StudentNo        string    `db:"student_no" json:"student_no"`
	FirstName        string    `db:"first_name" json:"first_name"`
	LastName         string    `db:"last_name" json:"last_name"`
	Email            string    `db:"email" json:"email"`
	Phone            string    `db:"phone" json:"phone"`
	SchoolYear       string    `db:"school_year" json:"school_year"`
	Semester         string    `db:"semester" json:"semester"`
	Department       string    `db:"department" json:"department"`
	Course           string    `db:"course" json:"course"`
	Section          string    `db:"section" json:"section"`
	YearLevel        string    `db:"year_level" json:"year_level"`
	DateOfBirth      time.Time `db:"date_of_birth" json:"date_of_birth"`
	Address          *string   `db:"address" json:"address,omitempty"`
	GuardianName     *string   `db:"guardian_name" json:"guardian_name,omitempty"`
	GuardianPhone    *string   `db:"guardian_phone" json:"guardian_phone,omitempty"`
	EmergencyContact *string   `db:"emergency_contact" json:"emergency_contact,omitempty"`
	UserID           *string   `db:"user_id" json:"user_id,omitempty"`
	Active           bool      `db:"active" json:"active"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search     string
	SchoolYear string
	Semester   string
	Department string
	Course     string
	Section    string
	YearLevel  string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
