package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/rs/zerolog"
)

// Store contracts the scoring service needs. Satisfied by the concrete
// repositories; narrowed to interfaces so scoring stays testable without a
// database. QuestionSource is the only read path for correct options outside
// the staff authoring flow.
type (
	ScoringSessionStore interface {
		GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
		MarkSubmitted(ctx context.Context, id uuid.UUID, score int, at time.Time) (bool, error)
	}
	QuestionSource interface {
		ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	}
	AnswerSource interface {
		ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error)
	}
)

// ScoringService is the trusted boundary: the single component allowed to
// compare stored answers against correct options and to write score fields.
// Clients invoke it with nothing but a session identity.
type ScoringService struct {
	sessions  ScoringSessionStore
	questions QuestionSource
	answers   AnswerSource
	log       zerolog.Logger
	now       func() time.Time
}

// NewScoringService creates a new ScoringService.
func NewScoringService(sessions ScoringSessionStore, questions QuestionSource, answers AnswerSource, log zerolog.Logger) *ScoringService {
	return &ScoringService{
		sessions:  sessions,
		questions: questions,
		answers:   answers,
		log:       log.With().Str("component", "scoring_service").Logger(),
		now:       time.Now,
	}
}

// Score computes and persists the final score for a session, exactly once.
// Re-invoking on an already-submitted session returns the stored result
// unchanged: answers are immutable after submission, so the recomputed
// counts are deterministic and the stored score is never overwritten.
// An exam with zero questions scores 0 over 0 questions; that is not an error.
func (s *ScoringService) Score(ctx context.Context, sessionID uuid.UUID) (*model.ScoreResult, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	questions, err := s.questions.ListByExam(ctx, sess.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	answers, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	result := grade(questions, answers)

	if sess.Submitted {
		return storedResult(sess, result), nil
	}

	ok, err := s.sessions.MarkSubmitted(ctx, sessionID, result.Score, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	if !ok {
		// Lost a concurrent submit race; the other invocation's write stands.
		sess, err = s.sessions.GetByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("refetch submitted session: %w", err)
		}
		return storedResult(sess, result), nil
	}

	s.log.Info().
		Str("session_id", sessionID.String()).
		Int("score", result.Score).
		Int("correct", result.CorrectCount).
		Int("total", result.TotalQuestions).
		Msg("Session scored")
	return &result, nil
}

// grade compares answers against correct options. Every question counts
// toward the total; marks are awarded only on an exact option match, so
// unanswered questions contribute zero.
func grade(questions []model.Question, answers []model.Answer) model.ScoreResult {
	selected := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		if a.SelectedOption != nil {
			selected[a.QuestionID] = *a.SelectedOption
		}
	}

	result := model.ScoreResult{TotalQuestions: len(questions)}
	for _, q := range questions {
		if opt, ok := selected[q.ID]; ok && opt == q.CorrectOption {
			result.Score += q.Marks
			result.CorrectCount++
		}
	}
	return result
}

func storedResult(sess *model.ExamSession, recomputed model.ScoreResult) *model.ScoreResult {
	out := recomputed
	if sess.Score != nil {
		out.Score = *sess.Score
	}
	return &out
}
