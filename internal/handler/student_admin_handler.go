package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/klasika/klasika-backend/internal/model"
	"github.com/klasika/klasika-backend/internal/repository"
	"github.com/klasika/klasika-backend/internal/response"
	"github.com/klasika/klasika-backend/internal/service"
	"github.com/klasika/klasika-backend/internal/validator"
)

// StudentAdminHandler covers the roster operations staff need around exams:
// classes, student accounts, and the single-device login reset.
type StudentAdminHandler struct {
	authService *service.AuthService
	studentRepo *repository.StudentRepository
	classRepo   *repository.ClassRepository
}

func NewStudentAdminHandler(
	authService *service.AuthService,
	studentRepo *repository.StudentRepository,
	classRepo *repository.ClassRepository,
) *StudentAdminHandler {
	return &StudentAdminHandler{
		authService: authService,
		studentRepo: studentRepo,
		classRepo:   classRepo,
	}
}

// ListClasses godoc
// GET /api/v1/staff/classes
func (h *StudentAdminHandler) ListClasses(c *gin.Context) {
	classes, err := h.classRepo.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if classes == nil {
		classes = []model.Class{}
	}
	response.Success(c, http.StatusOK, gin.H{"classes": classes})
}

// CreateClass godoc
// POST /api/v1/staff/classes
func (h *StudentAdminHandler) CreateClass(c *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required,min=1,max=50"`
		Stream string `json:"stream" binding:"max=50"`
	}
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	class := &model.Class{Name: req.Name, Stream: req.Stream}
	if err := h.classRepo.Create(c.Request.Context(), class); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"class": class})
}

// ListStudents godoc
// GET /api/v1/staff/classes/:class_id/students
func (h *StudentAdminHandler) ListStudents(c *gin.Context) {
	classID, err := strconv.Atoi(c.Param("class_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	students, err := h.studentRepo.ListByClass(c.Request.Context(), classID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if students == nil {
		students = []model.Student{}
	}
	response.Success(c, http.StatusOK, gin.H{"students": students})
}

// CreateStudent godoc
// POST /api/v1/staff/students
func (h *StudentAdminHandler) CreateStudent(c *gin.Context) {
	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	student := &model.Student{
		AdmissionNo:  req.AdmissionNo,
		Name:         req.Name,
		PasswordHash: hash,
		ClassID:      req.ClassID,
	}
	if err := h.studentRepo.Create(c.Request.Context(), student); err != nil {
		if errors.Is(err, repository.ErrDuplicateAdmissionNo) {
			response.Fail(c, http.StatusConflict, response.ErrConflict)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// ResetStudentLogin godoc
// POST /api/v1/staff/students/:student_id/reset-login
// Clears the single-device login so the student can sign in again after a
// crashed browser or a device swap.
func (h *StudentAdminHandler) ResetStudentLogin(c *gin.Context) {
	studentID, err := strconv.Atoi(c.Param("student_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetStudentLogin(c.Request.Context(), studentID); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}
