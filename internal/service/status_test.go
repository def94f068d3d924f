package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klasika/klasika-backend/internal/model"
)

func TestDeriveExamStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	past := now.Add(-2 * time.Hour)
	future := now.Add(2 * time.Hour)

	openSession := &model.ExamSession{ID: uuid.New(), StartedAt: past}
	score := 7
	submittedSession := &model.ExamSession{ID: uuid.New(), StartedAt: past, Submitted: true, Score: &score}

	tests := []struct {
		name     string
		startsAt *time.Time
		endsAt   *time.Time
		sess     *model.ExamSession
		want     model.ExamStatus
	}{
		{"no window, no session", nil, nil, nil, model.ExamStatusAvailable},
		{"inside window, no session", &past, &future, nil, model.ExamStatusAvailable},
		{"starts in the future", &future, nil, nil, model.ExamStatusNotStarted},
		{"already closed", nil, &past, nil, model.ExamStatusNotStarted},
		{"open session", nil, nil, openSession, model.ExamStatusInProgress},
		{"open session beats future start", &future, nil, openSession, model.ExamStatusInProgress},
		{"submitted session", nil, nil, submittedSession, model.ExamStatusCompleted},
		{"submitted beats future start", &future, nil, submittedSession, model.ExamStatusCompleted},
		{"submitted beats closed window", nil, &past, submittedSession, model.ExamStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := &model.Exam{ID: uuid.New(), StartsAt: tt.startsAt, EndsAt: tt.endsAt}
			got := DeriveExamStatus(exam, tt.sess, now)
			if got != tt.want {
				t.Errorf("DeriveExamStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveExamStatusIsTotal(t *testing.T) {
	// Every combination of window and session must map to one of the four
	// defined statuses, never an empty or unknown value.
	now := time.Now()
	times := []*time.Time{nil, ptrTime(now.Add(-time.Hour)), ptrTime(now.Add(time.Hour))}
	sessions := []*model.ExamSession{nil, {}, {Submitted: true}}

	valid := map[model.ExamStatus]bool{
		model.ExamStatusAvailable:  true,
		model.ExamStatusInProgress: true,
		model.ExamStatusCompleted:  true,
		model.ExamStatusNotStarted: true,
	}

	for _, start := range times {
		for _, end := range times {
			for _, sess := range sessions {
				exam := &model.Exam{StartsAt: start, EndsAt: end}
				got := DeriveExamStatus(exam, sess, now)
				if !valid[got] {
					t.Fatalf("DeriveExamStatus(start=%v end=%v sess=%+v) = %q, not a defined status",
						start, end, sess, got)
				}
			}
		}
	}
}

func ptrTime(t time.Time) *time.Time { return &t }
