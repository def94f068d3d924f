package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamSession represents one student's attempt at one exam.
// At most one session exists per (exam, student) pair, enforced by a unique
// constraint. Score fields are written only by the scoring service.
type ExamSession struct {
	ID          uuid.UUID  `json:"id"`
	ExamID      uuid.UUID  `json:"exam_id"`
	StudentID   int        `json:"student_id"`
	StartedAt   time.Time  `json:"started_at"`
	Submitted   bool       `json:"submitted"`
	Score       *int       `json:"score,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// ScoreResult is the scoring service output for a session.
// Unanswered questions count toward TotalQuestions but never CorrectCount.
type ScoreResult struct {
	Score          int `json:"score"`
	CorrectCount   int `json:"correct_count"`
	TotalQuestions int `json:"total_questions"`
}

// SessionState is the hydration payload for resuming an attempt: previously
// stored answers plus the authoritative remaining time in seconds.
type SessionState struct {
	SessionID        uuid.UUID         `json:"session_id"`
	ExamID           uuid.UUID         `json:"exam_id"`
	Answers          map[string]string `json:"answers"`
	RemainingSeconds int               `json:"remaining_seconds"`
}
