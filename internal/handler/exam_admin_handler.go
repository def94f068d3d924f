package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klasika/klasika-backend/internal/middleware"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/klasika/klasika-backend/internal/repository"
	"github.com/klasika/klasika-backend/internal/response"
	"github.com/klasika/klasika-backend/internal/service"
	"github.com/klasika/klasika-backend/internal/validator"
)

// ExamAdminHandler handles the staff surface: exam CRUD, question authoring,
// publication, and results.
type ExamAdminHandler struct {
	examService    *service.ExamService
	sessionService *service.SessionService
	questionRepo   *repository.QuestionRepository
}

// NewExamAdminHandler creates a new ExamAdminHandler.
func NewExamAdminHandler(
	examService *service.ExamService,
	sessionService *service.SessionService,
	questionRepo *repository.QuestionRepository,
) *ExamAdminHandler {
	return &ExamAdminHandler{
		examService:    examService,
		sessionService: sessionService,
		questionRepo:   questionRepo,
	}
}

// ListExams godoc
// GET /api/v1/staff/exams?page=&per_page=&mine=
// Teachers see their own exams by default; admins see everything.
func (h *ExamAdminHandler) ListExams(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	createdBy := 0
	if claims.Role != model.StaffRoleAdmin || c.Query("mine") == "true" {
		createdBy = claims.UserID
	}

	exams, pagination, err := h.examService.List(c.Request.Context(), createdBy, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// GetExam godoc
// GET /api/v1/staff/exams/:exam_id
// Returns the exam definition with its questions, correct options included.
func (h *ExamAdminHandler) GetExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	questions, err := h.questionRepo.ListByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// Staff need the correct options for authoring; the student paper goes
	// through the sanitized cache instead.
	authoring := make([]gin.H, 0, len(questions))
	for _, q := range questions {
		authoring = append(authoring, gin.H{
			"id":             q.ID,
			"text":           q.Text,
			"option_a":       q.OptionA,
			"option_b":       q.OptionB,
			"option_c":       q.OptionC,
			"option_d":       q.OptionD,
			"correct_option": q.CorrectOption,
			"marks":          q.Marks,
			"position":       q.Position,
		})
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam":      exam,
		"questions": authoring,
	})
}

// CreateExam godoc
// POST /api/v1/staff/exams
// Creates an unpublished exam owned by the caller.
func (h *ExamAdminHandler) CreateExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam := &model.Exam{
		Title:           req.Title,
		Subject:         req.Subject,
		ClassID:         req.ClassID,
		Term:            req.Term,
		AcademicYear:    req.AcademicYear,
		DurationMinutes: req.DurationMinutes,
		TotalMarks:      req.TotalMarks,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		Instructions:    req.Instructions,
		CreatedBy:       claims.UserID,
	}

	if err := h.examService.Create(c.Request.Context(), exam); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// UpdateExam godoc
// PUT /api/v1/staff/exams/:exam_id
// Updates the exam definition. Locked once attempts exist unless force=true.
func (h *ExamAdminHandler) UpdateExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.UpdateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	if req.Title != "" {
		exam.Title = req.Title
	}
	if req.Subject != "" {
		exam.Subject = req.Subject
	}
	if req.Term != "" {
		exam.Term = req.Term
	}
	if req.AcademicYear != "" {
		exam.AcademicYear = req.AcademicYear
	}
	if req.DurationMinutes != 0 {
		exam.DurationMinutes = req.DurationMinutes
	}
	if req.TotalMarks != 0 {
		exam.TotalMarks = req.TotalMarks
	}
	if req.StartsAt != nil {
		exam.StartsAt = req.StartsAt
	}
	if req.EndsAt != nil {
		exam.EndsAt = req.EndsAt
	}
	if req.Instructions != nil {
		exam.Instructions = *req.Instructions
	}

	if err := h.examService.Update(c.Request.Context(), exam, req.Force); err != nil {
		if errors.Is(err, service.ErrExamLocked) {
			response.Fail(c, http.StatusConflict, response.ErrExamLocked)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// DeleteExam godoc
// DELETE /api/v1/staff/exams/:exam_id
// Removes an exam. Refused once attempts exist, no force override here.
func (h *ExamAdminHandler) DeleteExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	if err := h.examService.Delete(c.Request.Context(), examID); err != nil {
		if errors.Is(err, service.ErrExamLocked) {
			response.Fail(c, http.StatusConflict, response.ErrExamLocked)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// AddQuestion godoc
// POST /api/v1/staff/exams/:exam_id/questions
// Appends one question to an unpublished or published exam.
func (h *ExamAdminHandler) AddQuestion(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.AddQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question := &model.Question{
		ExamID:        examID,
		Text:          req.Text,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectOption: req.CorrectOption,
		Marks:         req.Marks,
		Position:      req.Position,
	}

	if err := h.questionRepo.Create(c.Request.Context(), question); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question_id": question.ID})
}

// ReplaceQuestions godoc
// PUT /api/v1/staff/exams/:exam_id/questions
// Replaces the full question set in one transaction.
func (h *ExamAdminHandler) ReplaceQuestions(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		position := q.Position
		if position == 0 {
			position = i + 1
		}
		questions = append(questions, model.Question{
			ExamID:        examID,
			Text:          q.Text,
			OptionA:       q.OptionA,
			OptionB:       q.OptionB,
			OptionC:       q.OptionC,
			OptionD:       q.OptionD,
			CorrectOption: q.CorrectOption,
			Marks:         q.Marks,
			Position:      position,
		})
	}

	if err := h.questionRepo.ReplaceForExam(c.Request.Context(), examID, questions); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"count": len(questions)})
}

// PublishExam godoc
// POST /api/v1/staff/exams/:exam_id/publish
// Publishes the exam and warms the sanitized paper cache.
func (h *ExamAdminHandler) PublishExam(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	if err := h.examService.Publish(c.Request.Context(), examID); err != nil {
		if errors.Is(err, service.ErrNoQuestions) {
			response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// GetResults godoc
// GET /api/v1/staff/exams/:exam_id/results?page=&per_page=
// Lists per-student outcomes for an exam.
func (h *ExamAdminHandler) GetResults(c *gin.Context) {
	examID, ok := parseExamID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

	results, total, err := h.sessionService.Results(c.Request.Context(), examID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if results == nil {
		results = []repository.SessionResult{}
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}
	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: int(total),
		TotalPages: int((total + int64(perPage) - 1) / int64(perPage)),
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}

func parseExamID(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}
