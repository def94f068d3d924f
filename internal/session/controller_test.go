package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/rs/zerolog"
)

type fakeStore struct {
	mu        sync.Mutex
	sess      *model.ExamSession
	paper     *model.ExamPaper
	answers   map[string]string
	remaining int

	saved      map[uuid.UUID]string
	saveErr    error
	scoreErr   error
	scoreCalls int
	result     *model.ScoreResult
}

func newFakeStore(questions int, remaining int) *fakeStore {
	examID := uuid.New()
	paper := &model.ExamPaper{
		ExamID:          examID,
		Title:           "Continuous Assessment",
		Subject:         "Mathematics",
		DurationMinutes: 40,
		TotalMarks:      questions,
	}
	for i := 0; i < questions; i++ {
		paper.Questions = append(paper.Questions, model.QuestionForStudent{
			ID:       uuid.New(),
			Position: i + 1,
			Text:     "question",
			OptionA:  "a", OptionB: "b", OptionC: "c", OptionD: "d",
			Marks: 1,
		})
	}
	return &fakeStore{
		sess: &model.ExamSession{
			ID:        uuid.New(),
			ExamID:    examID,
			StudentID: 7,
			StartedAt: time.Now(),
		},
		paper:     paper,
		answers:   map[string]string{},
		remaining: remaining,
		saved:     map[uuid.UUID]string{},
		result:    &model.ScoreResult{Score: 3, CorrectCount: 3, TotalQuestions: questions},
	}
}

func (f *fakeStore) StartOrResume(_ context.Context, _ uuid.UUID, _, _ int) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *f.sess
	return &s, nil
}

func (f *fakeStore) Paper(_ context.Context, _ uuid.UUID) (*model.ExamPaper, error) {
	return f.paper, nil
}

func (f *fakeStore) State(_ context.Context, _ *model.ExamSession) (*model.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.SessionState{
		SessionID:        f.sess.ID,
		ExamID:           f.sess.ExamID,
		Answers:          f.answers,
		RemainingSeconds: f.remaining,
	}, nil
}

func (f *fakeStore) SaveAnswer(_ context.Context, _ *model.ExamSession, questionID uuid.UUID, option string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[questionID] = option
	return nil
}

func (f *fakeStore) Score(_ context.Context, _ uuid.UUID) (*model.ScoreResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreCalls++
	if f.scoreErr != nil {
		return nil, f.scoreErr
	}
	return f.result, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newEventRecorder() *eventRecorder {
	return &eventRecorder{ch: make(chan Event, 64)}
}

func (r *eventRecorder) notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
}

func (r *eventRecorder) wait(t *testing.T, want EventType, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-r.ch:
			if e.Type == want {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
			return Event{}
		}
	}
}

func (r *eventRecorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newController(store Store, rec *eventRecorder, opts ...Option) *Controller {
	return New(store, zerolog.Nop(), rec.notify, opts...)
}

func TestBeginHydratesStoredSelections(t *testing.T) {
	store := newFakeStore(3, 600)
	q0 := store.paper.Questions[0].ID
	q2 := store.paper.Questions[2].ID
	store.answers[q0.String()] = "B"
	store.answers[q2.String()] = "D"
	store.answers[uuid.NewString()] = "A" // stale answer for a removed question

	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if got := ctrl.State(); got != StateTaking {
		t.Fatalf("state = %s, want %s", got, StateTaking)
	}

	e := rec.wait(t, EventHydrated, time.Second)
	data := e.Data.(HydratedData)
	if len(data.Selections) != 2 {
		t.Fatalf("hydrated %d selections, want 2 (stale entries dropped)", len(data.Selections))
	}
	if data.Selections[q0.String()] != "B" || data.Selections[q2.String()] != "D" {
		t.Errorf("selections = %v", data.Selections)
	}
	if data.RemainingSeconds != 600 {
		t.Errorf("remaining = %d, want 600", data.RemainingSeconds)
	}

	sel := ctrl.Selections()
	if sel[q0] != "B" || sel[q2] != "D" {
		t.Errorf("local selections = %v", sel)
	}
}

func TestSelectWritesThrough(t *testing.T) {
	store := newFakeStore(2, 600)
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	qid := store.paper.Questions[0].ID
	if err := ctrl.Select(context.Background(), qid, "C"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if store.saved[qid] != "C" {
		t.Errorf("persisted %q, want C", store.saved[qid])
	}
	if ctrl.Selections()[qid] != "C" {
		t.Errorf("local selection missing")
	}
}

func TestSelectPersistFailureRetainsLocal(t *testing.T) {
	store := newFakeStore(2, 600)
	store.saveErr = errors.New("redis down")
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	qid := store.paper.Questions[0].ID
	err := ctrl.Select(context.Background(), qid, "A")
	if !errors.Is(err, ErrAnswerPersist) {
		t.Fatalf("err = %v, want ErrAnswerPersist", err)
	}
	if ctrl.Selections()[qid] != "A" {
		t.Errorf("local selection lost on persist failure")
	}
	if ctrl.State() != StateTaking {
		t.Errorf("state = %s, want taking", ctrl.State())
	}
}

func TestSelectValidation(t *testing.T) {
	store := newFakeStore(2, 600)
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	if err := ctrl.Select(context.Background(), store.paper.Questions[0].ID, "E"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("option E: err = %v, want ErrInvalidOption", err)
	}
	if err := ctrl.Select(context.Background(), uuid.New(), "A"); !errors.Is(err, ErrUnknownQuestion) {
		t.Errorf("foreign question: err = %v, want ErrUnknownQuestion", err)
	}
}

func TestManualSubmitFlow(t *testing.T) {
	store := newFakeStore(3, 600)
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := ctrl.Select(context.Background(), store.paper.Questions[0].ID, "A"); err != nil {
		t.Fatalf("Select: %v", err)
	}

	data, err := ctrl.RequestSubmit()
	if err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if data.Answered != 1 || data.Total != 3 {
		t.Errorf("confirm = %+v, want 1/3", data)
	}
	if ctrl.State() != StateConfirmSubmit {
		t.Fatalf("state = %s, want confirm_submit", ctrl.State())
	}

	// Cancel returns to taking without scoring.
	if err := ctrl.CancelSubmit(); err != nil {
		t.Fatalf("CancelSubmit: %v", err)
	}
	if ctrl.State() != StateTaking {
		t.Fatalf("state after cancel = %s", ctrl.State())
	}
	if store.scoreCalls != 0 {
		t.Fatalf("scoring ran before confirmation")
	}

	if _, err := ctrl.RequestSubmit(); err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}
	if err := ctrl.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}

	e := rec.wait(t, EventResult, time.Second)
	res := e.Data.(ResultData)
	if res.Score != 3 || res.TotalMarks != 3 || res.AutoSubmitted {
		t.Errorf("result = %+v", res)
	}
	if ctrl.State() != StateResult {
		t.Errorf("state = %s, want result", ctrl.State())
	}
	if store.scoreCalls != 1 {
		t.Errorf("scoreCalls = %d, want 1", store.scoreCalls)
	}
}

func TestSubmitRequiresConfirmation(t *testing.T) {
	store := newFakeStore(2, 600)
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := ctrl.ConfirmSubmit(context.Background()); !errors.Is(err, ErrNotConfirming) {
		t.Errorf("confirm without request: err = %v, want ErrNotConfirming", err)
	}
	if store.scoreCalls != 0 {
		t.Errorf("scoring ran without confirmation")
	}
}

func TestResumePastDeadlineAutoSubmits(t *testing.T) {
	store := newFakeStore(3, 0)
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	e := rec.wait(t, EventResult, time.Second)
	res := e.Data.(ResultData)
	if !res.AutoSubmitted {
		t.Errorf("result not flagged auto-submitted")
	}
	if ctrl.State() != StateResult {
		t.Errorf("state = %s, want result", ctrl.State())
	}

	// Expiry bypasses the confirmation step entirely.
	for _, typ := range rec.types() {
		if typ == EventConfirm {
			t.Errorf("confirm event emitted on forced submission")
		}
	}
}

func TestExpiryTimerForcesSubmission(t *testing.T) {
	store := newFakeStore(2, 1)
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if ctrl.State() != StateTaking {
		t.Fatalf("state = %s, want taking", ctrl.State())
	}

	e := rec.wait(t, EventResult, 3*time.Second)
	if !e.Data.(ResultData).AutoSubmitted {
		t.Errorf("expiry result not flagged auto-submitted")
	}

	// Finished attempts reject further input.
	if err := ctrl.Select(context.Background(), store.paper.Questions[0].ID, "A"); !errors.Is(err, ErrNotTaking) {
		t.Errorf("select after expiry: err = %v, want ErrNotTaking", err)
	}
}

func TestExpiryDuringConfirmation(t *testing.T) {
	store := newFakeStore(2, 1)
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := ctrl.RequestSubmit(); err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}

	// The countdown keeps running while the confirm prompt is open.
	rec.wait(t, EventResult, 3*time.Second)
	if ctrl.State() != StateResult {
		t.Errorf("state = %s, want result", ctrl.State())
	}
}

func TestScoringFailureKeepsAttemptRecoverable(t *testing.T) {
	store := newFakeStore(2, 600)
	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := ctrl.RequestSubmit(); err != nil {
		t.Fatalf("RequestSubmit: %v", err)
	}

	store.mu.Lock()
	store.scoreErr = errors.New("database down")
	store.mu.Unlock()

	if err := ctrl.ConfirmSubmit(context.Background()); !errors.Is(err, ErrScoringFailed) {
		t.Fatalf("err = %v, want ErrScoringFailed", err)
	}
	rec.wait(t, EventFault, time.Second)
	if ctrl.State() != StateConfirmSubmit {
		t.Fatalf("state = %s, want confirm_submit after failure", ctrl.State())
	}

	store.mu.Lock()
	store.scoreErr = nil
	store.mu.Unlock()

	if err := ctrl.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("retry ConfirmSubmit: %v", err)
	}
	rec.wait(t, EventResult, time.Second)
	if ctrl.State() != StateResult {
		t.Errorf("state = %s, want result", ctrl.State())
	}
}

func TestBeginReplaysStoredResult(t *testing.T) {
	store := newFakeStore(3, 0)
	store.sess.Submitted = true
	score := 2
	store.sess.Score = &score
	store.result = &model.ScoreResult{Score: 2, CorrectCount: 2, TotalQuestions: 3}

	rec := newEventRecorder()
	ctrl := newController(store, rec)
	defer ctrl.Close()

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if ctrl.State() != StateResult {
		t.Fatalf("state = %s, want result", ctrl.State())
	}

	e := rec.wait(t, EventResult, time.Second)
	res := e.Data.(ResultData)
	if res.Score != 2 || res.AutoSubmitted {
		t.Errorf("result = %+v", res)
	}
	for _, typ := range rec.types() {
		if typ == EventHydrated {
			t.Errorf("hydration ran for a finished session")
		}
	}
}

func TestCloseStopsEverything(t *testing.T) {
	store := newFakeStore(2, 600)
	rec := newEventRecorder()
	ctrl := newController(store, rec)

	if err := ctrl.Begin(context.Background(), store.sess.ExamID, 7, 2); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	ctrl.Close()
	ctrl.Close() // idempotent

	if ctrl.State() != StateClosed {
		t.Fatalf("state = %s, want closed", ctrl.State())
	}
	if err := ctrl.Select(context.Background(), store.paper.Questions[0].ID, "A"); !errors.Is(err, ErrNotTaking) {
		t.Errorf("select after close: err = %v, want ErrNotTaking", err)
	}
}
