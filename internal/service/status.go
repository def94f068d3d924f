package service

import (
	"time"

	"github.com/klasika/klasika-backend/internal/model"
)

// DeriveExamStatus classifies an exam for one student into exactly one
// status. Precedence: a submitted session wins regardless of the time
// window, then an open session, then the availability window. Pure function
// of (exam, session, now) with no side effects.
func DeriveExamStatus(exam *model.Exam, sess *model.ExamSession, now time.Time) model.ExamStatus {
	switch {
	case sess != nil && sess.Submitted:
		return model.ExamStatusCompleted
	case sess != nil:
		return model.ExamStatusInProgress
	case exam.StartsAt != nil && exam.StartsAt.After(now):
		return model.ExamStatusNotStarted
	case exam.EndsAt != nil && exam.EndsAt.Before(now):
		return model.ExamStatusNotStarted
	default:
		return model.ExamStatusAvailable
	}
}
