package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klasika/klasika-backend/internal/model"
)

// SessionResult combines student data with their attempt outcome for the
// staff results view.
type SessionResult struct {
	StudentID   int        `json:"student_id"`
	Name        string     `json:"name"`
	AdmissionNo string     `json:"admission_no"`
	Score       *int       `json:"score"`
	Submitted   bool       `json:"submitted"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at"`
}

// SessionRepository handles exam session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, exam_id, student_id, started_at, submitted, score, submitted_at`

// GetByID retrieves a session by its UUID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.Submitted, &s.Score, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByExamAndStudent retrieves a session for a specific exam-student pair.
func (r *SessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.Submitted, &s.Score, &s.SubmittedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new session. The unique (exam_id, student_id) constraint
// plus DO NOTHING makes a concurrent double-start surface as pgx.ErrNoRows,
// which callers recover by fetching the existing row.
func (r *SessionRepository) Create(ctx context.Context, s *model.ExamSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		s.ExamID, s.StudentID,
	).Scan(&s.ID, &s.StartedAt)
}

// MarkSubmitted finalizes a session exactly once. Returns false when the
// session was already submitted (the guard matched no rows), so callers can
// fall back to the stored result instead of re-scoring.
func (r *SessionRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, score int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET submitted = TRUE, score = $1, submitted_at = $2
		 WHERE id = $3 AND submitted = FALSE`,
		score, at, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByStudent retrieves all sessions for a student, newest first.
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE student_id = $1
		 ORDER BY started_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.Submitted, &s.Score, &s.SubmittedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// CountByExam returns the number of attempts on an exam. Used to lock exam
// definitions once any attempt exists.
func (r *SessionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE exam_id = $1`, examID).Scan(&n)
	return n, err
}

// ListByExam retrieves all student results for an exam with pagination.
func (r *SessionRepository) ListByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]SessionResult, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_sessions WHERE exam_id = $1`, examID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.name, s.admission_no,
		        es.score, es.submitted, es.started_at, es.submitted_at
		 FROM exam_sessions es
		 JOIN students s ON es.student_id = s.id
		 WHERE es.exam_id = $1
		 ORDER BY s.name ASC
		 LIMIT $2 OFFSET $3`, examID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var res SessionResult
		if err := rows.Scan(&res.StudentID, &res.Name, &res.AdmissionNo,
			&res.Score, &res.Submitted, &res.StartedAt, &res.SubmittedAt); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
