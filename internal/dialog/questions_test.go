package dialog

import (
	"testing"

	"lunara/internal/models"
)

// TestNextQuestion_Priority checks the first-match-wins question ordering
// against records at each stage of completion.
func TestNextQuestion_Priority(t *testing.T) {
	empty := &models.HealthRecord{}
	if got := NextQuestion(empty); got != questionFlow {
		t.Errorf("Empty record should ask for flow, got %q", got)
	}

	flowOnly := &models.HealthRecord{Period: models.PeriodInfo{Flow: models.FlowHeavy}}
	if got := NextQuestion(flowOnly); got != questionDate {
		t.Errorf("Record with flow should ask for date, got %q", got)
	}

	statusOnly := &models.HealthRecord{Period: models.PeriodInfo{Status: models.PeriodStart}}
	if got := NextQuestion(statusOnly); got != questionDate {
		t.Errorf("Record with status should ask for date, got %q", got)
	}

	dateOnly := &models.HealthRecord{Timing: models.Timing{Date: "2026-03-05"}}
	if got := NextQuestion(dateOnly); got != questionFlow {
		t.Errorf("Record with only a date should ask for flow, got %q", got)
	}

	complete := &models.HealthRecord{
		Period: models.PeriodInfo{Status: models.PeriodStart},
		Timing: models.Timing{Date: "2026-03-05"},
	}
	if got := NextQuestion(complete); got != "" {
		t.Errorf("Complete record needs no question, got %q", got)
	}
}

// TestNextQuestion_Deterministic verifies repeated calls on the same record
// produce identical text.
func TestNextQuestion_Deterministic(t *testing.T) {
	rec := &models.HealthRecord{
		Symptoms: []models.Symptom{{Type: "cramps", Severity: models.SeverityMild}},
	}
	first := NextQuestion(rec)
	for i := 0; i < 10; i++ {
		if got := NextQuestion(rec); got != first {
			t.Fatalf("NextQuestion not deterministic: %q then %q", first, got)
		}
	}
}

// TestIsEndSignal covers bare answers, embedded phrases, and the inputs
// that must not close a session.
func TestIsEndSignal(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"no", true},
		{"No", true},
		{"  DONE  ", true},
		{"nope", true},
		{"no thanks", true},
		{"that's all", true},
		{"I think that's it", true},
		{"thats everything", true},
		{"nothing else to add", true},
		{"okay goodbye", true},
		{"I am done with this", true},

		{"", false},
		{"   ", false},
		{"no period this month", false},
		{"nothing unusual today", false},
		{"I stopped my period yesterday", false},
		{"it's been heavy all day", false},
		{"my cramps are gone", false},
	}
	for _, tc := range cases {
		if got := IsEndSignal(tc.text); got != tc.want {
			t.Errorf("IsEndSignal(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
