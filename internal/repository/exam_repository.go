package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klasika/klasika-backend/internal/model"
)

// ExamRepository handles exam definition data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

const examColumns = `id, title, subject, class_id, term, academic_year,
	duration_minutes, total_marks, starts_at, ends_at, published,
	instructions, created_by, created_at, updated_at`

func scanExam(row interface{ Scan(...any) error }) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.Subject, &e.ClassID, &e.Term, &e.AcademicYear,
		&e.DurationMinutes, &e.TotalMarks, &e.StartsAt, &e.EndsAt, &e.Published,
		&e.Instructions, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// ListPublishedByClass retrieves published exams for a class, newest first.
func (r *ExamRepository) ListPublishedByClass(ctx context.Context, classID int) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+`
		 FROM exams
		 WHERE published = TRUE AND class_id = $1
		 ORDER BY created_at DESC`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}

// ListPaginated retrieves exams for staff, optionally filtered by creator.
// Pass createdBy=0 to list all exams.
func (r *ExamRepository) ListPaginated(ctx context.Context, createdBy, limit, offset int) ([]model.Exam, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM exams`
	var countArgs []interface{}
	if createdBy > 0 {
		countQuery += ` WHERE created_by = $1`
		countArgs = append(countArgs, createdBy)
	}
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + examColumns + ` FROM exams`
	var args []interface{}
	if createdBy > 0 {
		query += ` WHERE created_by = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, createdBy, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

// Create inserts a new exam as unpublished.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, subject, class_id, term, academic_year,
		        duration_minutes, total_marks, starts_at, ends_at,
		        instructions, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, published, created_at, updated_at`,
		e.Title, e.Subject, e.ClassID, e.Term, e.AcademicYear,
		e.DurationMinutes, e.TotalMarks, e.StartsAt, e.EndsAt,
		e.Instructions, e.CreatedBy,
	).Scan(&e.ID, &e.Published, &e.CreatedAt, &e.UpdatedAt)
}

// Update rewrites the mutable exam fields.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, subject = $2, term = $3, academic_year = $4,
		     duration_minutes = $5, total_marks = $6, starts_at = $7,
		     ends_at = $8, instructions = $9, updated_at = NOW()
		 WHERE id = $10`,
		e.Title, e.Subject, e.Term, e.AcademicYear,
		e.DurationMinutes, e.TotalMarks, e.StartsAt,
		e.EndsAt, e.Instructions, e.ID)
	return err
}

// SetPublished flips the publication flag.
func (r *ExamRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET published = $1, updated_at = NOW() WHERE id = $2`,
		published, id)
	return err
}

// Delete removes an exam and, via cascade, its questions.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}
