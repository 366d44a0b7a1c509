package repository

import (
	"errors"

	"github.com/lib/pq"
)

// BulkFailure records why one record in a bulk persist batch was rejected.
// Index refers to the position in the submitted batch; Reason is safe to
// show to the uploader while Err keeps the underlying cause for logging.
type BulkFailure struct {
	Index  int
	Reason string
	Err    error
}

const pqUniqueViolation = "23505"

// UniqueViolation maps a Postgres unique-violation error to an
// uploader-facing reason. The bool is false for any other error.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pqUniqueViolation {
		return "", false
	}
	switch pqErr.Constraint {
	case "users_email_key":
		return "Email address already has an account", true
	case "students_email_key", "instructors_email_key":
		return "Email address already registered", true
	case "students_student_no_key":
		return "Student number already registered", true
	case "instructors_instructor_no_key":
		return "Instructor number already registered", true
	default:
		return "Duplicate record", true
	}
}

// failureReason normalizes any persistence error into a BulkFailure reason.
func failureReason(err error) string {
	if reason, ok := UniqueViolation(err); ok {
		return reason
	}
	return "Record could not be saved"
}
