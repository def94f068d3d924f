package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/klasika/klasika-backend/internal/model"
)

// AttemptStore bundles the session, exam, and scoring services behind the
// narrow surface the attempt controller drives. It owns the ordering rule
// around submission: cached answers flush to the database before scoring,
// and the cache clears only after the score is final.
type AttemptStore struct {
	sessions *SessionService
	exams    *ExamService
	scoring  *ScoringService
}

func NewAttemptStore(sessions *SessionService, exams *ExamService, scoring *ScoringService) *AttemptStore {
	return &AttemptStore{sessions: sessions, exams: exams, scoring: scoring}
}

func (s *AttemptStore) StartOrResume(ctx context.Context, examID uuid.UUID, studentID, classID int) (*model.ExamSession, error) {
	return s.sessions.StartOrResume(ctx, examID, studentID, classID)
}

func (s *AttemptStore) Paper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	return s.exams.GetPaper(ctx, examID)
}

func (s *AttemptStore) State(ctx context.Context, sess *model.ExamSession) (*model.SessionState, error) {
	return s.sessions.State(ctx, sess)
}

func (s *AttemptStore) SaveAnswer(ctx context.Context, sess *model.ExamSession, questionID uuid.UUID, option string) error {
	return s.sessions.SaveAnswer(ctx, sess, questionID, option)
}

// Score finalizes a session. Any answers still sitting in the cache are
// flushed first so the last selection always counts, then the session is
// scored. The cache entry is dropped only on success; a failed run leaves
// everything in place for a retry.
func (s *AttemptStore) Score(ctx context.Context, sessionID uuid.UUID) (*model.ScoreResult, error) {
	if err := s.sessions.FlushAnswers(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("flush answers: %w", err)
	}

	res, err := s.scoring.Score(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.sessions.ClearAnswerCache(ctx, sessionID)
	return res, nil
}
