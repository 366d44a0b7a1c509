package models

import "time"

// Instructor represents a teaching staff record.
type Instructor struct {
	ID             string    `db:"id" json:"id"`
	InstructorNo   string    `db:"instructor_no" json:"instructor_no"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Email          string    `db:"email" json:"email"`
	Phone          string    `db:"phone" json:"phone"`
	SchoolYear     string    `db:"school_year" json:"school_year"`
	Semester       string    `db:"semester" json:"semester"`
	Department     string    `db:"department" json:"department"`
	Course         string    `db:"course" json:"course"`
	Experience     *string   `db:"experience" json:"experience,omitempty"`
	Specialization *string   `db:"specialization" json:"specialization,omitempty"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// InstructorFilter captures filtering options for listing instructors.
type InstructorFilter struct {
	Search     string
	SchoolYear string
	Semester   string
	Department string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// InstructorDetail bundles an instructor with their assigned subjects.
type InstructorDetail struct {
	Instructor
	Subjects []Subject `json:"subjects"`
}
