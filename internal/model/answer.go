package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer represents one student's selected option for one question within a
// session. At most one answer exists per (session, question) pair; writes
// are upserts with last-write-wins semantics. After the session is submitted
// the row is a read-only historical record.
type Answer struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption *string   `json:"selected_option"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SaveAnswerRequest is the payload for persisting a selected option.
type SaveAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Option     string    `json:"option" binding:"required,oneof=A B C D"`
}
