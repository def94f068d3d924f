package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/klasika/klasika-backend/internal/config"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/klasika/klasika-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors for session flows.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionSubmitted = errors.New("session is already submitted")
	ErrNotSessionOwner  = errors.New("session belongs to another student")
	ErrExamNotAvailable = errors.New("exam is not available")
)

// SessionService handles the exam attempt lifecycle: listing with statuses,
// idempotent start/resume, answer persistence, and state hydration.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	answerRepo  *repository.AnswerRepository
	examRepo    *repository.ExamRepository
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	answerRepo *repository.AnswerRepository,
	examRepo *repository.ExamRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		answerRepo:  answerRepo,
		examRepo:    examRepo,
		rdb:         rdb,
		log:         log.With().Str("component", "session_service").Logger(),
	}
}

// ListForStudent returns the published exams for the student's class, each
// overlaid with the status derived from that student's session.
func (s *SessionService) ListForStudent(ctx context.Context, studentID, classID int) ([]model.StudentExam, error) {
	exams, err := s.examRepo.ListPublishedByClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list published exams: %w", err)
	}

	sessions, err := s.sessionRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessionByExam := make(map[uuid.UUID]*model.ExamSession, len(sessions))
	for i := range sessions {
		sessionByExam[sessions[i].ExamID] = &sessions[i]
	}

	now := time.Now()
	list := make([]model.StudentExam, 0, len(exams))
	for i := range exams {
		sess := sessionByExam[exams[i].ID]
		entry := model.StudentExam{
			Exam:   exams[i],
			Status: DeriveExamStatus(&exams[i], sess, now),
		}
		if sess != nil {
			entry.SessionID = &sess.ID
			entry.Score = sess.Score
			entry.SubmittedAt = sess.SubmittedAt
		}
		list = append(list, entry)
	}
	return list, nil
}

// StartOrResume obtains the single session for (exam, student), creating it
// lazily on first start. A concurrent double-start loses the insert race and
// recovers by fetching the existing row, so the call is idempotent.
func (s *SessionService) StartOrResume(ctx context.Context, examID uuid.UUID, studentID, classID int) (*model.ExamSession, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.Published || exam.ClassID != classID {
		return nil, ErrExamNotAvailable
	}

	existing, err := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}
	if existing != nil {
		s.cacheStartTime(ctx, existing)
		return existing, nil
	}

	// First start must fall inside the availability window. A resume above
	// bypasses this check: an open attempt may run past end_time, the
	// countdown alone bounds it.
	now := time.Now()
	if st := DeriveExamStatus(exam, nil, now); st != model.ExamStatusAvailable {
		return nil, ErrExamNotAvailable
	}

	session := &model.ExamSession{ExamID: examID, StudentID: studentID}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the unique-constraint race: another start created the row.
			existing, fetchErr := s.sessionRepo.GetByExamAndStudent(ctx, examID, studentID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, fetch failed: %w", fetchErr)
			}
			s.cacheStartTime(ctx, existing)
			return existing, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.cacheStartTime(ctx, session)
	s.log.Info().
		Str("session_id", session.ID.String()).
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Msg("Session started")
	return session, nil
}

// GetOwned fetches a session and verifies it belongs to the student.
func (s *SessionService) GetOwned(ctx context.Context, sessionID uuid.UUID, studentID int) (*model.ExamSession, error) {
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess.StudentID != studentID {
		return nil, ErrNotSessionOwner
	}
	return sess, nil
}

// SaveAnswer records a selected option for an unsubmitted session. The write
// lands in the Redis answer hash immediately (the resume source) and is
// queued for asynchronous upsert into PostgreSQL.
func (s *SessionService) SaveAnswer(ctx context.Context, sess *model.ExamSession, questionID uuid.UUID, option string) error {
	if sess.Submitted {
		return ErrSessionSubmitted
	}
	if !model.ValidOption(option) {
		return fmt.Errorf("invalid option %q", option)
	}

	key := config.CacheKey.SessionAnswersKey(sess.ID.String())
	if err := s.rdb.HSet(ctx, key, questionID.String(), option).Err(); err != nil {
		return fmt.Errorf("cache answer: %w", err)
	}

	payload, _ := json.Marshal(map[string]string{
		"session_id":  sess.ID.String(),
		"question_id": questionID.String(),
		"option":      option,
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err(); err != nil {
		// The cached hash still holds the selection; submit-time reconcile
		// and the next resume both read from it.
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Answer persist enqueue failed")
	}
	return nil
}

// State hydrates a resuming client: previously stored answers merged from
// PostgreSQL and the live Redis hash (the hash wins, it has the latest
// writes), plus the authoritative remaining seconds.
func (s *SessionService) State(ctx context.Context, sess *model.ExamSession) (*model.SessionState, error) {
	answers := make(map[string]string)

	stored, err := s.answerRepo.ListBySession(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	for _, a := range stored {
		if a.SelectedOption != nil {
			answers[a.QuestionID.String()] = *a.SelectedOption
		}
	}

	cached, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sess.ID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get cached answers: %w", err)
	}
	for q, opt := range cached {
		answers[q] = opt
	}

	remaining, err := s.RemainingSeconds(ctx, sess)
	if err != nil {
		return nil, err
	}

	return &model.SessionState{
		SessionID:        sess.ID,
		ExamID:           sess.ExamID,
		Answers:          answers,
		RemainingSeconds: remaining,
	}, nil
}

// RemainingSeconds computes the authoritative countdown from the persisted
// session start, never restarting the full duration on resume. The start
// time is served from Redis with a DB fallback that self-heals the cache.
func (s *SessionService) RemainingSeconds(ctx context.Context, sess *model.ExamSession) (int, error) {
	exam, err := s.examRepo.GetByID(ctx, sess.ExamID)
	if err != nil {
		return 0, fmt.Errorf("get exam: %w", err)
	}

	startUnix := sess.StartedAt.Unix()
	startKey := config.CacheKey.SessionStartKey(sess.ExamID.String(), sess.StudentID)
	val, err := s.rdb.Get(ctx, startKey).Result()
	if err == nil {
		if parsed, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			startUnix = parsed
		}
	} else if errors.Is(err, redis.Nil) {
		s.cacheStartTime(ctx, sess)
	} else {
		return 0, fmt.Errorf("get start time: %w", err)
	}

	deadline := time.Unix(startUnix, 0).Add(time.Duration(exam.DurationMinutes) * time.Minute)
	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	return int(remaining.Seconds()), nil
}

// FlushAnswers reconciles the Redis answer hash into PostgreSQL. Called by
// the scoring flow so that "submit" happens logically after every answer
// write the client issued.
func (s *SessionService) FlushAnswers(ctx context.Context, sessionID uuid.UUID) error {
	cached, err := s.rdb.HGetAll(ctx, config.CacheKey.SessionAnswersKey(sessionID.String())).Result()
	if err != nil {
		return fmt.Errorf("get cached answers: %w", err)
	}

	for q, opt := range cached {
		questionID, err := uuid.Parse(q)
		if err != nil {
			s.log.Warn().Str("field", q).Msg("Skipping malformed question ID in answer hash")
			continue
		}
		if err := s.answerRepo.Upsert(ctx, sessionID, questionID, opt); err != nil {
			return fmt.Errorf("flush answer %s: %w", q, err)
		}
	}
	return nil
}

// ClearAnswerCache drops the live answer hash after a successful submit.
func (s *SessionService) ClearAnswerCache(ctx context.Context, sessionID uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(sessionID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Answer cache cleanup failed")
	}
}

// Results retrieves paginated attempt outcomes for the staff results view.
func (s *SessionService) Results(ctx context.Context, examID uuid.UUID, page, perPage int) ([]repository.SessionResult, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}
	return s.sessionRepo.ListByExam(ctx, examID, page, perPage)
}

func (s *SessionService) cacheStartTime(ctx context.Context, sess *model.ExamSession) {
	key := config.CacheKey.SessionStartKey(sess.ExamID.String(), sess.StudentID)
	if err := s.rdb.Set(ctx, key, sess.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Start time cache failed")
	}
}
