package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klasika/klasika-backend/internal/middleware"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/klasika/klasika-backend/internal/response"
	"github.com/klasika/klasika-backend/internal/service"
	"github.com/klasika/klasika-backend/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints. The WebSocket
// stream is the primary exam-taking surface; these REST endpoints cover the
// lobby plus a reload-safe fallback for the same operations.
type StudentPortalHandler struct {
	sessionService *service.SessionService
	examService    *service.ExamService
	attemptStore   *service.AttemptStore
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.SessionService,
	examService *service.ExamService,
	attemptStore *service.AttemptStore,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		examService:    examService,
		attemptStore:   attemptStore,
	}
}

// ListExams godoc
// GET /api/v1/student/exams
// Returns published exams for the student's class, each with its derived
// status and, where a session exists, the score.
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exams, err := h.sessionService.ListForStudent(c.Request.Context(), claims.UserID, claims.ClassID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartExam godoc
// POST /api/v1/student/exams/:exam_id/start
// Starts or resumes the single session for this exam (idempotent).
func (h *StudentPortalHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.sessionService.StartOrResume(c.Request.Context(), examID, claims.UserID, claims.ClassID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrExamNotAvailable):
			response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	remaining := 0
	if !sess.Submitted {
		remaining, err = h.sessionService.RemainingSeconds(c.Request.Context(), sess)
		if err != nil {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
			return
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"session":           sess,
		"remaining_seconds": remaining,
	})
}

// GetPaper godoc
// GET /api/v1/student/sessions/:session_id/paper
// Returns the sanitized exam paper from the Redis cache. Ownership of the
// session gates access, so a student can never pull papers for exams they
// have not started.
func (h *StudentPortalHandler) GetPaper(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), sess.ExamID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrExamNotPublished)
		return
	}

	response.Success(c, http.StatusOK, paper)
}

// GetState godoc
// GET /api/v1/student/sessions/:session_id/state
// Returns stored answers plus remaining seconds. Covers the page reload:
// the client re-hydrates its selections and countdown from this payload.
func (h *StudentPortalHandler) GetState(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	state, err := h.sessionService.State(c.Request.Context(), sess)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// PUT /api/v1/student/sessions/:session_id/answers
// Records one option selection. Last write wins per question.
func (h *StudentPortalHandler) SaveAnswer(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.sessionService.SaveAnswer(c.Request.Context(), sess, req.QuestionID, req.Option); err != nil {
		if errors.Is(err, service.ErrSessionSubmitted) {
			response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrAnswerSaveFailed)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"question_id": req.QuestionID,
		"option":      req.Option,
	})
}

// SubmitExam godoc
// POST /api/v1/student/sessions/:session_id/submit
// Finalizes the session and returns the score. Safe to repeat: a session
// that was already submitted returns its stored result unchanged.
func (h *StudentPortalHandler) SubmitExam(c *gin.Context) {
	sess, ok := h.ownedSession(c)
	if !ok {
		return
	}

	result, err := h.attemptStore.Score(c.Request.Context(), sess.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrScoringFailed)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// ownedSession parses :session_id and enforces ownership. Replies and
// returns ok=false on any failure.
func (h *StudentPortalHandler) ownedSession(c *gin.Context) (*model.ExamSession, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	sess, err := h.sessionService.GetOwned(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrNotSessionOwner):
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return nil, false
	}
	return sess, true
}
