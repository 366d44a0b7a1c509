package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/neattend/neattend-api/internal/models"
)

// InstructorRepository manages persistence for instructor records and the
// subject rows onboarded alongside them.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs an InstructorRepository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

const instructorColumns = `id, instructor_no, first_name, last_name, email, phone, school_year, semester, department, course, experience, specialization, user_id, active, created_at, updated_at`

// List returns instructors matching the provided filters with a total count.
func (r *InstructorRepository) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error) {
	base := "FROM instructors WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name || ' ' || last_name) LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(instructor_no) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"last_name":     "last_name",
		"instructor_no": "instructor_no",
		"email":         "email",
		"department":    "department",
		"created_at":    "created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", instructorColumns, base, column, order, size, offset)

	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructors: %w", err)
	}
	return instructors, total, nil
}

// FindByID fetches an instructor together with their subjects.
func (r *InstructorRepository) FindByID(ctx context.Context, id string) (*models.InstructorDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM instructors WHERE id = $1 LIMIT 1", instructorColumns)
	var detail models.InstructorDetail
	if err := r.db.GetContext(ctx, &detail.Instructor, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find instructor by id: %w", err)
	}

	const subjectQuery = `SELECT id, instructor_id, name, code, sections, room, meeting_link, description, credits, days, start_time, end_time, school_year, semester, created_at, updated_at FROM subjects WHERE instructor_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &detail.Subjects, subjectQuery, id); err != nil {
		return nil, fmt.Errorf("list instructor subjects: %w", err)
	}
	return &detail, nil
}

// FindByEmail fetches an instructor by email address.
func (r *InstructorRepository) FindByEmail(ctx context.Context, email string) (*models.Instructor, error) {
	query := fmt.Sprintf("SELECT %s FROM instructors WHERE LOWER(email) = LOWER($1) LIMIT 1", instructorColumns)
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find instructor by email: %w", err)
	}
	return &instructor, nil
}

const insertInstructorQuery = `INSERT INTO instructors (id, instructor_no, first_name, last_name, email, phone, school_year, semester, department, course, experience, specialization, user_id, active, created_at, updated_at)
VALUES (:id, :instructor_no, :first_name, :last_name, :email, :phone, :school_year, :semester, :department, :course, :experience, :specialization, :user_id, :active, :created_at, :updated_at)`

// Create inserts a new instructor row.
func (r *InstructorRepository) Create(ctx context.Context, instructor *models.Instructor) error {
	prepareInstructor(instructor)
	if _, err := r.db.NamedExecContext(ctx, insertInstructorQuery, instructor); err != nil {
		return fmt.Errorf("create instructor: %w", err)
	}
	return nil
}

// Update updates mutable fields of an instructor.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	instructor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructors SET first_name = :first_name, last_name = :last_name, email = :email, phone = :phone, school_year = :school_year, semester = :semester, department = :department, course = :course, experience = :experience, specialization = :specialization, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("update instructor: %w", err)
	}
	return nil
}

// Deactivate marks an instructor inactive instead of removing the row.
func (r *InstructorRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE instructors SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate instructor: %w", err)
	}
	return nil
}

// ListForExport returns the full instructor roster for a school year and
// optional semester, ordered for report rendering.
func (r *InstructorRepository) ListForExport(ctx context.Context, schoolYear, semester string) ([]models.Instructor, error) {
	query := fmt.Sprintf("SELECT %s FROM instructors WHERE school_year = $1 AND ($2 = '' OR semester = $2) ORDER BY last_name ASC, first_name ASC", instructorColumns)
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("export instructors: %w", err)
	}
	return instructors, nil
}

// InstructorOnboarding couples an instructor row with the provisioned
// account and the subject rows extracted from the same sheet group.
type InstructorOnboarding struct {
	Instructor *models.Instructor
	Account    *models.User
	Subjects   []models.Subject
}

// CreateWithSubjects inserts the account, the instructor, and every subject
// row in one transaction. A failure anywhere rolls the whole group back so
// the batch entry can be reported as a single rejection.
func (r *InstructorRepository) CreateWithSubjects(ctx context.Context, instructor *models.Instructor, account *models.User, subjects []models.Subject) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin instructor onboarding: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if account != nil {
		if account.ID == "" {
			account.ID = uuid.NewString()
		}
		if account.CreatedAt.IsZero() {
			account.CreatedAt = now
		}
		account.UpdatedAt = now
		const userQuery = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, userQuery, account); err != nil {
			return fmt.Errorf("create instructor account: %w", err)
		}
		instructor.UserID = &account.ID
	}

	prepareInstructor(instructor)
	if _, err := tx.NamedExecContext(ctx, insertInstructorQuery, instructor); err != nil {
		return fmt.Errorf("create instructor: %w", err)
	}

	const subjectQuery = `INSERT INTO subjects (id, instructor_id, name, code, sections, room, meeting_link, description, credits, days, start_time, end_time, school_year, semester, created_at, updated_at)
VALUES (:id, :instructor_id, :name, :code, :sections, :room, :meeting_link, :description, :credits, :days, :start_time, :end_time, :school_year, :semester, :created_at, :updated_at)`
	for i := range subjects {
		subject := &subjects[i]
		if subject.ID == "" {
			subject.ID = uuid.NewString()
		}
		subject.InstructorID = instructor.ID
		if subject.CreatedAt.IsZero() {
			subject.CreatedAt = now
		}
		subject.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, subjectQuery, subject); err != nil {
			return fmt.Errorf("create instructor subject %s: %w", subject.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit instructor onboarding: %w", err)
	}
	committed = true
	return nil
}

// BulkCreate persists onboarding groups one at a time, each in its own
// transaction, collecting per-group failures keyed by batch position.
func (r *InstructorRepository) BulkCreate(ctx context.Context, batch []InstructorOnboarding) []BulkFailure {
	var failures []BulkFailure
	for i, entry := range batch {
		if err := r.CreateWithSubjects(ctx, entry.Instructor, entry.Account, entry.Subjects); err != nil {
			failures = append(failures, BulkFailure{Index: i, Reason: failureReason(err), Err: err})
		}
	}
	return failures
}

func prepareInstructor(instructor *models.Instructor) {
	if instructor.ID == "" {
		instructor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instructor.CreatedAt.IsZero() {
		instructor.CreatedAt = now
	}
	instructor.UpdatedAt = now
}
