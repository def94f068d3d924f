package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus classifies an exam for a particular student. Exactly one status
// applies at any time; a submitted attempt wins over everything else.
type ExamStatus string

const (
	ExamStatusAvailable  ExamStatus = "available"
	ExamStatusInProgress ExamStatus = "in_progress"
	ExamStatusCompleted  ExamStatus = "completed"
	ExamStatusNotStarted ExamStatus = "not_started"
)

// Exam represents a CBT exam definition. Once a student attempt exists the
// definition is locked for ordinary edits (staff may force through).
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Subject         string     `json:"subject"`
	ClassID         int        `json:"class_id"`
	Term            string     `json:"term"`
	AcademicYear    string     `json:"academic_year"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      int        `json:"total_marks"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	EndsAt          *time.Time `json:"ends_at,omitempty"`
	Published       bool       `json:"published"`
	Instructions    string     `json:"instructions"`
	CreatedBy       int        `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// StudentExam is an exam as presented in the student's exam list,
// overlaid with the status derived from their session (if any).
type StudentExam struct {
	Exam
	Status      ExamStatus `json:"status"`
	SessionID   *uuid.UUID `json:"session_id,omitempty"`
	Score       *int       `json:"score,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// ExamPaper is the cached payload sent to exam-taking students.
// It carries only the sanitized question view, never correct options.
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Subject         string               `json:"subject"`
	DurationMinutes int                  `json:"duration_minutes"`
	TotalMarks      int                  `json:"total_marks"`
	Instructions    string               `json:"instructions"`
	Questions       []QuestionForStudent `json:"questions"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string     `json:"title" binding:"required,min=3,max=255"`
	Subject         string     `json:"subject" binding:"required,min=2,max=100"`
	ClassID         int        `json:"class_id" binding:"required"`
	Term            string     `json:"term" binding:"required,max=50"`
	AcademicYear    string     `json:"academic_year" binding:"required,max=20"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	TotalMarks      int        `json:"total_marks" binding:"required,min=1"`
	StartsAt        *time.Time `json:"starts_at" binding:"omitempty"`
	EndsAt          *time.Time `json:"ends_at" binding:"omitempty,gtfield=StartsAt"`
	Instructions    string     `json:"instructions" binding:"max=5000"`
}

// UpdateExamRequest is the payload for updating an existing exam.
// Force must be set once the exam has attempts (administrative override).
type UpdateExamRequest struct {
	Title           string     `json:"title" binding:"omitempty,min=3,max=255"`
	Subject         string     `json:"subject" binding:"omitempty,min=2,max=100"`
	Term            string     `json:"term" binding:"omitempty,max=50"`
	AcademicYear    string     `json:"academic_year" binding:"omitempty,max=20"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	TotalMarks      int        `json:"total_marks" binding:"omitempty,min=1"`
	StartsAt        *time.Time `json:"starts_at" binding:"omitempty"`
	EndsAt          *time.Time `json:"ends_at" binding:"omitempty"`
	Instructions    *string    `json:"instructions" binding:"omitempty,max=5000"`
	Force           bool       `json:"force"`
}
