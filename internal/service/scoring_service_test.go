package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/rs/zerolog"
)

// fakeScoringStore implements the three scoring store interfaces in memory.
type fakeScoringStore struct {
	session   *model.ExamSession
	questions []model.Question
	answers   []model.Answer

	markCalls int
}

func (f *fakeScoringStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	if f.session == nil || f.session.ID != id {
		return nil, pgx.ErrNoRows
	}
	copy := *f.session
	return &copy, nil
}

func (f *fakeScoringStore) MarkSubmitted(_ context.Context, id uuid.UUID, score int, at time.Time) (bool, error) {
	f.markCalls++
	if f.session == nil || f.session.ID != id {
		return false, pgx.ErrNoRows
	}
	if f.session.Submitted {
		return false, nil
	}
	f.session.Submitted = true
	f.session.Score = &score
	f.session.SubmittedAt = &at
	return true, nil
}

func (f *fakeScoringStore) ListByExam(_ context.Context, _ uuid.UUID) ([]model.Question, error) {
	return f.questions, nil
}

func (f *fakeScoringStore) ListBySession(_ context.Context, _ uuid.UUID) ([]model.Answer, error) {
	return f.answers, nil
}

func newScoring(store *fakeScoringStore) *ScoringService {
	return NewScoringService(store, store, store, zerolog.Nop())
}

func opt(s string) *string { return &s }

func TestScoreAwardsMarksPerCorrectOption(t *testing.T) {
	// 3 questions with marks [1,1,2]: Q1 answered correctly, Q2 answered
	// wrong, Q3 left unanswered.
	sessionID := uuid.New()
	examID := uuid.New()
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()

	store := &fakeScoringStore{
		session: &model.ExamSession{ID: sessionID, ExamID: examID, StudentID: 1},
		questions: []model.Question{
			{ID: q1, ExamID: examID, CorrectOption: "A", Marks: 1},
			{ID: q2, ExamID: examID, CorrectOption: "B", Marks: 1},
			{ID: q3, ExamID: examID, CorrectOption: "C", Marks: 2},
		},
		answers: []model.Answer{
			{SessionID: sessionID, QuestionID: q1, SelectedOption: opt("A")},
			{SessionID: sessionID, QuestionID: q2, SelectedOption: opt("D")},
		},
	}

	res, err := newScoring(store).Score(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	if res.Score != 1 || res.CorrectCount != 1 || res.TotalQuestions != 3 {
		t.Errorf("got {score=%d correct=%d total=%d}, want {1 1 3}",
			res.Score, res.CorrectCount, res.TotalQuestions)
	}
	if !store.session.Submitted {
		t.Error("session not marked submitted")
	}
	if store.session.Score == nil || *store.session.Score != 1 {
		t.Errorf("stored score = %v, want 1", store.session.Score)
	}
	if store.session.SubmittedAt == nil {
		t.Error("submitted_at not set")
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	sessionID := uuid.New()
	examID := uuid.New()
	q1 := uuid.New()

	store := &fakeScoringStore{
		session: &model.ExamSession{ID: sessionID, ExamID: examID},
		questions: []model.Question{
			{ID: q1, ExamID: examID, CorrectOption: "B", Marks: 5},
		},
		answers: []model.Answer{
			{SessionID: sessionID, QuestionID: q1, SelectedOption: opt("B")},
		},
	}

	svc := newScoring(store)
	first, err := svc.Score(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("first Score: %v", err)
	}
	firstAt := *store.session.SubmittedAt

	second, err := svc.Score(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("second Score: %v", err)
	}

	if *first != *second {
		t.Errorf("second invocation changed the result: first=%+v second=%+v", first, second)
	}
	if *store.session.Score != 5 {
		t.Errorf("stored score = %d, want 5 (no double counting)", *store.session.Score)
	}
	if !store.session.SubmittedAt.Equal(firstAt) {
		t.Error("submitted_at rewritten on re-invocation")
	}
	if store.markCalls != 1 {
		t.Errorf("MarkSubmitted called %d times, want 1", store.markCalls)
	}
}

func TestScoreSessionNotFound(t *testing.T) {
	store := &fakeScoringStore{}
	_, err := newScoring(store).Score(context.Background(), uuid.New())
	if err != ErrSessionNotFound {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestScoreExamWithoutQuestions(t *testing.T) {
	sessionID := uuid.New()
	store := &fakeScoringStore{
		session: &model.ExamSession{ID: sessionID, ExamID: uuid.New()},
	}

	res, err := newScoring(store).Score(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.Score != 0 || res.CorrectCount != 0 || res.TotalQuestions != 0 {
		t.Errorf("got %+v, want all-zero result", res)
	}
	if !store.session.Submitted {
		t.Error("empty exam should still finalize the session")
	}
}

func TestGradeInvariant(t *testing.T) {
	// score == sum of marks over questions whose selected option matches.
	examID := uuid.New()
	sessionID := uuid.New()

	var questions []model.Question
	var answers []model.Answer
	options := []string{"A", "B", "C", "D"}

	wantScore, wantCorrect := 0, 0
	for i := 0; i < 20; i++ {
		q := model.Question{
			ID:            uuid.New(),
			ExamID:        examID,
			CorrectOption: options[i%4],
			Marks:         1 + i%3,
		}
		questions = append(questions, q)

		switch i % 3 {
		case 0: // correct answer
			answers = append(answers, model.Answer{SessionID: sessionID, QuestionID: q.ID, SelectedOption: opt(q.CorrectOption)})
			wantScore += q.Marks
			wantCorrect++
		case 1: // wrong answer
			answers = append(answers, model.Answer{SessionID: sessionID, QuestionID: q.ID, SelectedOption: opt(options[(i+1)%4])})
		case 2: // unanswered
		}
	}

	res := grade(questions, answers)
	if res.Score != wantScore || res.CorrectCount != wantCorrect || res.TotalQuestions != 20 {
		t.Errorf("grade() = %+v, want {score=%d correct=%d total=20}", res, wantScore, wantCorrect)
	}
}

func TestGradeIgnoresNilSelections(t *testing.T) {
	q := model.Question{ID: uuid.New(), CorrectOption: "A", Marks: 3}
	answers := []model.Answer{{QuestionID: q.ID, SelectedOption: nil}}

	res := grade([]model.Question{q}, answers)
	if res.Score != 0 || res.CorrectCount != 0 || res.TotalQuestions != 1 {
		t.Errorf("grade() = %+v, want zero score with total 1", res)
	}
}
