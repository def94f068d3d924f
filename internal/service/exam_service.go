package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/klasika/klasika-backend/internal/config"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/klasika/klasika-backend/internal/repository"
	"github.com/klasika/klasika-backend/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrNoQuestions      = errors.New("exam has no questions")
	ErrExamNotPublished = errors.New("exam is not published")
	ErrExamLocked       = errors.New("exam already has attempts and is locked for edits")
)

// ExamService handles exam definition business logic and the sanitized
// paper cache. The cached paper never contains correct options.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	sessionRepo  *repository.SessionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	sessionRepo *repository.SessionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// List retrieves exams for staff with pagination. createdBy=0 lists all.
func (s *ExamService) List(ctx context.Context, createdBy, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListPaginated(ctx, createdBy, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return exams, pagination, nil
}

// Create inserts a new unpublished exam.
func (s *ExamService) Create(ctx context.Context, exam *model.Exam) error {
	return s.examRepo.Create(ctx, exam)
}

// Update rewrites an exam definition. Once any attempt exists the definition
// is immutable unless force is set (administrative override), in which case
// the paper cache is refreshed so running clients see consistent data.
func (s *ExamService) Update(ctx context.Context, exam *model.Exam, force bool) error {
	attempts, err := s.sessionRepo.CountByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if attempts > 0 && !force {
		return ErrExamLocked
	}

	if err := s.examRepo.Update(ctx, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}

	if exam.Published {
		if err := s.warmPaperCache(ctx, exam); err != nil && !errors.Is(err, ErrNoQuestions) {
			s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Paper cache refresh failed")
		}
	}
	return nil
}

// Delete removes an exam. Refused once attempts exist.
func (s *ExamService) Delete(ctx context.Context, id uuid.UUID) error {
	attempts, err := s.sessionRepo.CountByExam(ctx, id)
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if attempts > 0 {
		return ErrExamLocked
	}
	if err := s.examRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, config.CacheKey.ExamPaperKey(id.String()))
	return nil
}

// Publish flips the publication flag and warms the sanitized paper cache.
// An exam with no questions cannot be published.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	if err := s.warmPaperCache(ctx, exam); err != nil {
		return err
	}

	if err := s.examRepo.SetPublished(ctx, examID, true); err != nil {
		return fmt.Errorf("set published: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// GetPaper returns the sanitized exam paper for students, served from Redis
// with a PostgreSQL fallback that self-heals the cache.
func (s *ExamService) GetPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	key := config.CacheKey.ExamPaperKey(examID.String())

	raw, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		paper := &model.ExamPaper{}
		if err := json.Unmarshal([]byte(raw), paper); err == nil {
			return paper, nil
		}
		// Corrupt cache entry: fall through and rebuild from the DB.
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cached paper: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.Published {
		return nil, ErrExamNotPublished
	}

	paper, err := s.buildPaper(ctx, exam)
	if err != nil {
		return nil, err
	}
	if err := s.cachePaper(ctx, paper); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Paper cache self-heal failed")
	}
	return paper, nil
}

// PrewarmAllCaches loads every published exam's paper into Redis.
// Called at startup before accepting traffic.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, _, err := s.examRepo.ListPaginated(ctx, 0, 1000, 0)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	warmed := 0
	for i := range exams {
		if !exams[i].Published {
			continue
		}
		if err := s.warmPaperCache(ctx, &exams[i]); err != nil {
			s.log.Warn().Err(err).Str("exam_id", exams[i].ID.String()).Msg("Prewarm failed")
			continue
		}
		warmed++
	}

	s.log.Info().Int("count", warmed).Msg("Paper caches prewarmed")
	return nil
}

func (s *ExamService) buildPaper(ctx context.Context, exam *model.Exam) (*model.ExamPaper, error) {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	sanitized := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		sanitized[i] = q.Sanitize()
	}

	return &model.ExamPaper{
		ExamID:          exam.ID,
		Title:           exam.Title,
		Subject:         exam.Subject,
		DurationMinutes: exam.DurationMinutes,
		TotalMarks:      exam.TotalMarks,
		Instructions:    exam.Instructions,
		Questions:       sanitized,
	}, nil
}

func (s *ExamService) warmPaperCache(ctx context.Context, exam *model.Exam) error {
	paper, err := s.buildPaper(ctx, exam)
	if err != nil {
		return err
	}
	return s.cachePaper(ctx, paper)
}

func (s *ExamService) cachePaper(ctx context.Context, paper *model.ExamPaper) error {
	raw, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}
	key := config.CacheKey.ExamPaperKey(paper.ExamID.String())
	if err := s.rdb.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("cache paper: %w", err)
	}
	return nil
}
