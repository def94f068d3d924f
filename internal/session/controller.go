// Package session drives the take-exam state machine for one connected
// student: hydration on start/resume, optimistic answer selection with
// write-through persistence, the countdown, and submission. One Controller
// exists per attempt stream; all storage work goes through the Store
// interface, so the controller itself never sees a correct option.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/rs/zerolog"
)

// State identifies where the attempt is in its lifecycle.
type State string

const (
	StateIdle          State = "idle"
	StateTaking        State = "taking"
	StateConfirmSubmit State = "confirm_submit"
	StateResult        State = "result"
	StateClosed        State = "closed"
)

// Controller errors.
var (
	ErrNotTaking        = errors.New("attempt is not in the taking state")
	ErrNotConfirming    = errors.New("no submit confirmation is pending")
	ErrAlreadyFinished  = errors.New("attempt already finished")
	ErrAnswerPersist    = errors.New("answer persistence failed")
	ErrScoringFailed    = errors.New("scoring failed")
	ErrUnknownQuestion  = errors.New("question does not belong to this exam")
	ErrInvalidOption    = errors.New("selected option must be one of A, B, C, D")
)

// Store is what the controller needs from the backend.
type Store interface {
	StartOrResume(ctx context.Context, examID uuid.UUID, studentID, classID int) (*model.ExamSession, error)
	Paper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error)
	State(ctx context.Context, sess *model.ExamSession) (*model.SessionState, error)
	SaveAnswer(ctx context.Context, sess *model.ExamSession, questionID uuid.UUID, option string) error
	Score(ctx context.Context, sessionID uuid.UUID) (*model.ScoreResult, error)
}

// EventType enumerates controller notifications.
type EventType string

const (
	EventHydrated EventType = "hydrated"
	EventTick     EventType = "tick"
	EventConfirm  EventType = "confirm"
	EventResult   EventType = "result"
	EventFault    EventType = "fault"
)

// Event is a notification pushed to the connected client.
type Event struct {
	Type EventType
	Data interface{}
}

// HydratedData carries the sanitized paper plus restored selections.
type HydratedData struct {
	Paper            *model.ExamPaper  `json:"paper"`
	Selections       map[string]string `json:"selections"`
	RemainingSeconds int               `json:"remaining_seconds"`
}

// TickData is the per-second countdown broadcast.
type TickData struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

// ConfirmData shows answered-vs-total counts before a manual submit.
type ConfirmData struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

// ResultData is the final payload after scoring.
type ResultData struct {
	Score          int  `json:"score"`
	TotalMarks     int  `json:"total_marks"`
	CorrectCount   int  `json:"correct_count"`
	TotalQuestions int  `json:"total_questions"`
	AutoSubmitted  bool `json:"auto_submitted"`
}

const scoringRetryDelay = 5 * time.Second

// Controller runs the attempt state machine for a single student connection.
type Controller struct {
	store  Store
	log    zerolog.Logger
	notify func(Event)
	now    func() time.Time

	mu         sync.Mutex
	state      State
	sess       *model.ExamSession
	paper      *model.ExamPaper
	known      map[uuid.UUID]bool // question IDs on the paper
	selections map[uuid.UUID]string
	deadline   time.Time

	expireTimer *time.Timer
	retryTimer  *time.Timer
	tickStop    chan struct{}
}

// Option customizes a Controller; used by tests to control the clock.
type Option func(*Controller)

// WithNow overrides the controller's time source.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller. notify receives every event pushed to the
// client; it must not block.
func New(store Store, log zerolog.Logger, notify func(Event), opts ...Option) *Controller {
	c := &Controller{
		store:      store,
		log:        log.With().Str("component", "attempt_controller").Logger(),
		notify:     notify,
		now:        time.Now,
		state:      StateIdle,
		selections: make(map[uuid.UUID]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selections returns a copy of the current local selection state.
func (c *Controller) Selections() map[uuid.UUID]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uuid.UUID]string, len(c.selections))
	for k, v := range c.selections {
		out[k] = v
	}
	return out
}

// Begin starts or resumes the attempt: obtains the single session for
// (exam, student), loads the sanitized paper, restores stored answers into
// local selection state, and starts the countdown. If the session was
// already submitted the controller goes straight to the stored result.
// If the deadline has already passed, the attempt is auto-submitted
// immediately with whatever answers are stored.
func (c *Controller) Begin(ctx context.Context, examID uuid.UUID, studentID, classID int) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("begin from state %s", c.state)
	}
	c.mu.Unlock()

	sess, err := c.store.StartOrResume(ctx, examID, studentID, classID)
	if err != nil {
		return fmt.Errorf("start or resume: %w", err)
	}

	paper, err := c.store.Paper(ctx, examID)
	if err != nil {
		return fmt.Errorf("load paper: %w", err)
	}

	if sess.Submitted {
		return c.beginFinished(ctx, sess, paper)
	}

	state, err := c.store.State(ctx, sess)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	c.mu.Lock()
	c.sess = sess
	c.paper = paper
	c.known = make(map[uuid.UUID]bool, len(paper.Questions))
	for _, q := range paper.Questions {
		c.known[q.ID] = true
	}
	for qid, opt := range state.Answers {
		id, perr := uuid.Parse(qid)
		if perr != nil || !c.known[id] {
			continue
		}
		c.selections[id] = opt
	}
	c.state = StateTaking
	c.deadline = c.now().Add(time.Duration(state.RemainingSeconds) * time.Second)
	remaining := state.RemainingSeconds
	selections := selectionStrings(c.selections)
	c.mu.Unlock()

	c.notify(Event{Type: EventHydrated, Data: HydratedData{
		Paper:            paper,
		Selections:       selections,
		RemainingSeconds: remaining,
	}})

	if remaining <= 0 {
		c.expire()
		return nil
	}

	c.startTimers(time.Duration(remaining) * time.Second)
	return nil
}

// beginFinished handles resuming a session that was already submitted:
// the stored result is replayed without re-entering the taking state.
func (c *Controller) beginFinished(ctx context.Context, sess *model.ExamSession, paper *model.ExamPaper) error {
	res, err := c.store.Score(ctx, sess.ID)
	if err != nil {
		return fmt.Errorf("load stored result: %w", err)
	}

	c.mu.Lock()
	c.sess = sess
	c.paper = paper
	c.state = StateResult
	c.mu.Unlock()

	c.notify(Event{Type: EventResult, Data: ResultData{
		Score:          res.Score,
		TotalMarks:     paper.TotalMarks,
		CorrectCount:   res.CorrectCount,
		TotalQuestions: res.TotalQuestions,
	}})
	return nil
}

// Select records an option for a question: local state updates first
// (optimistic), then the write-through persist. On persistence failure the
// local selection is retained: the user's intent is not lost, and the next
// resume reconciles from the stored answers.
func (c *Controller) Select(ctx context.Context, questionID uuid.UUID, option string) error {
	if !model.ValidOption(option) {
		return ErrInvalidOption
	}

	c.mu.Lock()
	if c.state != StateTaking {
		c.mu.Unlock()
		return ErrNotTaking
	}
	if !c.known[questionID] {
		c.mu.Unlock()
		return ErrUnknownQuestion
	}
	c.selections[questionID] = option
	sess := c.sess
	c.mu.Unlock()

	if err := c.store.SaveAnswer(ctx, sess, questionID, option); err != nil {
		c.log.Warn().Err(err).
			Str("session_id", sess.ID.String()).
			Str("question_id", questionID.String()).
			Msg("Answer persist failed, local selection retained")
		return fmt.Errorf("%w: %v", ErrAnswerPersist, err)
	}
	return nil
}

// RequestSubmit moves taking -> confirm_submit and reports answered counts.
func (c *Controller) RequestSubmit() (ConfirmData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateTaking {
		return ConfirmData{}, ErrNotTaking
	}
	c.state = StateConfirmSubmit
	data := ConfirmData{Answered: len(c.selections), Total: len(c.paper.Questions)}
	c.notify(Event{Type: EventConfirm, Data: data})
	return data, nil
}

// CancelSubmit returns from confirm_submit to taking.
func (c *Controller) CancelSubmit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConfirmSubmit {
		return ErrNotConfirming
	}
	c.state = StateTaking
	return nil
}

// ConfirmSubmit finalizes a manual submit. On scoring failure the
// controller stays in confirm_submit so the client can retry; the countdown
// keeps running and expiry still forces submission.
func (c *Controller) ConfirmSubmit(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateResult {
		c.mu.Unlock()
		return ErrAlreadyFinished
	}
	if c.state != StateConfirmSubmit {
		c.mu.Unlock()
		return ErrNotConfirming
	}
	c.mu.Unlock()

	return c.submit(ctx, false)
}

// Close tears the attempt down: every timer stops, no further events fire.
// Safe to call from any state and more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()
	c.state = StateClosed
}

// submit scores the session and transitions to result. The timers stop
// before scoring; on failure the previous state is restored and the
// countdown continues, so a failed submit never strands the attempt.
func (c *Controller) submit(ctx context.Context, auto bool) error {
	c.mu.Lock()
	if c.state == StateResult || c.state == StateClosed {
		c.mu.Unlock()
		return ErrAlreadyFinished
	}
	prev := c.state
	sess := c.sess
	paper := c.paper
	c.stopTimersLocked()
	c.mu.Unlock()

	res, err := c.store.Score(ctx, sess.ID)
	if err != nil {
		c.mu.Lock()
		restored := false
		if c.state != StateClosed {
			c.state = prev
			restored = true
			if remaining := c.deadline.Sub(c.now()); remaining > 0 {
				c.startTimersLocked(remaining)
			} else if auto {
				// Past the deadline: keep forcing submission until it lands.
				c.retryTimer = time.AfterFunc(scoringRetryDelay, c.expire)
			}
		}
		c.mu.Unlock()

		c.log.Error().Err(err).Str("session_id", sess.ID.String()).Bool("auto", auto).Msg("Scoring failed")
		if restored {
			c.notify(Event{Type: EventFault, Data: "scoring failed, attempt is still open"})
		}
		return fmt.Errorf("%w: %v", ErrScoringFailed, err)
	}

	c.mu.Lock()
	c.state = StateResult
	c.mu.Unlock()

	c.notify(Event{Type: EventResult, Data: ResultData{
		Score:          res.Score,
		TotalMarks:     paper.TotalMarks,
		CorrectCount:   res.CorrectCount,
		TotalQuestions: res.TotalQuestions,
		AutoSubmitted:  auto,
	}})
	return nil
}

// expire fires when the countdown reaches zero: submission is forced
// without the confirmation step.
func (c *Controller) expire() {
	c.mu.Lock()
	if c.state != StateTaking && c.state != StateConfirmSubmit {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Detached context: the WS read loop may be blocked, the submit must
	// proceed regardless.
	_ = c.submit(context.Background(), true)
}

func (c *Controller) startTimers(remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateTaking {
		return
	}
	c.startTimersLocked(remaining)
}

func (c *Controller) startTimersLocked(remaining time.Duration) {
	c.expireTimer = time.AfterFunc(remaining, c.expire)

	stop := make(chan struct{})
	c.tickStop = stop
	go c.tickLoop(stop)
}

func (c *Controller) tickLoop(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.state != StateTaking && c.state != StateConfirmSubmit {
				c.mu.Unlock()
				return
			}
			remaining := int(c.deadline.Sub(c.now()).Seconds())
			c.mu.Unlock()

			if remaining < 0 {
				remaining = 0
			}
			c.notify(Event{Type: EventTick, Data: TickData{RemainingSeconds: remaining}})
		}
	}
}

// stopTimersLocked cancels the expiry timer, the retry timer, and the tick
// loop. Must hold c.mu. Idempotent: every exit path from taking runs this.
func (c *Controller) stopTimersLocked() {
	if c.expireTimer != nil {
		c.expireTimer.Stop()
		c.expireTimer = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.tickStop != nil {
		close(c.tickStop)
		c.tickStop = nil
	}
}

func selectionStrings(in map[uuid.UUID]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k.String()] = v
	}
	return out
}
