package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestQuestionJSONNeverExposesCorrectOption(t *testing.T) {
	q := Question{
		ID:            uuid.New(),
		ExamID:        uuid.New(),
		Text:          "What is 2 + 2?",
		OptionA:       "3",
		OptionB:       "4",
		OptionC:       "5",
		OptionD:       "22",
		CorrectOption: "B",
		Marks:         1,
		Position:      1,
	}

	for name, v := range map[string]interface{}{
		"stored":    q,
		"sanitized": q.Sanitize(),
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		if strings.Contains(string(raw), "correct") {
			t.Errorf("%s: serialized question leaks the correct option: %s", name, raw)
		}
	}
}

func TestSanitizeKeepsStudentFacingFields(t *testing.T) {
	q := Question{
		ID:      uuid.New(),
		Text:    "Capital of France?",
		OptionA: "Paris", OptionB: "Lyon", OptionC: "Nice", OptionD: "Lille",
		CorrectOption: "A",
		Marks:         2,
		Position:      7,
	}

	s := q.Sanitize()
	if s.ID != q.ID || s.Text != q.Text || s.Marks != q.Marks || s.Position != q.Position {
		t.Errorf("sanitized view dropped student-facing fields: %+v", s)
	}
	if s.OptionA != "Paris" || s.OptionD != "Lille" {
		t.Errorf("sanitized view mangled options: %+v", s)
	}
}

func TestValidOption(t *testing.T) {
	for _, ok := range []string{"A", "B", "C", "D"} {
		if !ValidOption(ok) {
			t.Errorf("ValidOption(%q) = false, want true", ok)
		}
	}
	for _, bad := range []string{"", "a", "E", "AB", " A"} {
		if ValidOption(bad) {
			t.Errorf("ValidOption(%q) = true, want false", bad)
		}
	}
}
