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

// SubjectRepository handles persistence for subjects and their weekly
// schedules.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectSelectColumns = `s.id, s.instructor_id, s.name, s.code, s.sections, s.room, s.meeting_link, s.description, s.credits, s.days, s.start_time, s.end_time, s.school_year, s.semester, s.created_at, s.updated_at`

// List returns subjects with instructor metadata matching the filters.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.SubjectWithInstructor, int, error) {
	base := "FROM subjects s JOIN instructors i ON i.id = s.instructor_id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("s.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.SchoolYear != "" {
		conditions = append(conditions, fmt.Sprintf("s.school_year = $%d", len(args)+1))
		args = append(args, filter.SchoolYear)
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("s.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Day != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(s.days)", len(args)+1))
		args = append(args, filter.Day)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(s.sections)", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.code) LIKE $%d OR LOWER(s.name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"code":       "s.code",
		"name":       "s.name",
		"start_time": "s.start_time",
		"created_at": "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
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

	query := fmt.Sprintf(`SELECT %s, i.first_name || ' ' || i.last_name AS instructor_name, i.email AS instructor_email %s ORDER BY %s %s LIMIT %d OFFSET %d`, subjectSelectColumns, base, column, order, size, offset)

	var subjects []models.SubjectWithInstructor
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}

	return subjects, total, nil
}

// FindByID returns a subject with instructor metadata.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.SubjectWithInstructor, error) {
	query := fmt.Sprintf(`SELECT %s, i.first_name || ' ' || i.last_name AS instructor_name, i.email AS instructor_email FROM subjects s JOIN instructors i ON i.id = s.instructor_id WHERE s.id = $1 LIMIT 1`, subjectSelectColumns)
	var subject models.SubjectWithInstructor
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by id: %w", err)
	}
	return &subject, nil
}

// ListByInstructor returns every subject assigned to an instructor.
func (r *SubjectRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.Subject, error) {
	const query = `SELECT id, instructor_id, name, code, sections, room, meeting_link, description, credits, days, start_time, end_time, school_year, semester, created_at, updated_at FROM subjects WHERE instructor_id = $1 ORDER BY created_at ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, instructorID); err != nil {
		return nil, fmt.Errorf("list subjects by instructor: %w", err)
	}
	return subjects, nil
}

// ListForExport returns every subject for a school year and optional
// semester together with instructor metadata, ordered for report rendering.
func (r *SubjectRepository) ListForExport(ctx context.Context, schoolYear, semester string) ([]models.SubjectWithInstructor, error) {
	query := fmt.Sprintf(`SELECT %s, i.first_name || ' ' || i.last_name AS instructor_name, i.email AS instructor_email FROM subjects s JOIN instructors i ON i.id = s.instructor_id WHERE s.school_year = $1 AND ($2 = '' OR s.semester = $2) ORDER BY s.code ASC`, subjectSelectColumns)
	var subjects []models.SubjectWithInstructor
	if err := r.db.SelectContext(ctx, &subjects, query, schoolYear, semester); err != nil {
		return nil, fmt.Errorf("export subjects: %w", err)
	}
	return subjects, nil
}

// Create persists a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	const query = `INSERT INTO subjects (id, instructor_id, name, code, sections, room, meeting_link, description, credits, days, start_time, end_time, school_year, semester, created_at, updated_at)
VALUES (:id, :instructor_id, :name, :code, :sections, :room, :meeting_link, :description, :credits, :days, :start_time, :end_time, :school_year, :semester, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies a subject including its schedule columns.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()
	const query = `UPDATE subjects SET name = :name, code = :code, sections = :sections, room = :room, meeting_link = :meeting_link, description = :description, credits = :credits, days = :days, start_time = :start_time, end_time = :end_time, school_year = :school_year, semester = :semester, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject record.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}

// CountAttendanceRecords returns how many attendance rows reference the subject.
func (r *SubjectRepository) CountAttendanceRecords(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance_records WHERE subject_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count attendance records: %w", err)
	}
	return count, nil
}
