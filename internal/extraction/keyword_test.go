package extraction

import (
	"context"
	"testing"
	"time"

	"lunara/internal/models"
)

// fixedNow pins relative date resolution to a known Friday.
var fixedNow = time.Date(2026, time.March, 6, 12, 0, 0, 0, time.UTC)

func newTestKeywordExtractor() *KeywordExtractor {
	k := NewKeywordExtractor(nil)
	k.now = func() time.Time { return fixedNow }
	return k
}

// TestKeywordExtractor_FullUtterance runs the canonical voice note through
// the rule engine and checks every extracted field.
func TestKeywordExtractor_FullUtterance(t *testing.T) {
	k := newTestKeywordExtractor()
	rec, err := k.Extract(context.Background(), "I started my period yesterday and it's been heavy all day with severe cramps")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if rec.Period.Status != models.PeriodStart {
		t.Errorf("Expected status start, got %q", rec.Period.Status)
	}
	if rec.Period.Flow != models.FlowHeavy {
		t.Errorf("Expected flow heavy, got %q", rec.Period.Flow)
	}
	if len(rec.Symptoms) != 1 {
		t.Fatalf("Expected 1 symptom, got %d: %+v", len(rec.Symptoms), rec.Symptoms)
	}
	if rec.Symptoms[0].Type != "cramps" || rec.Symptoms[0].Severity != models.SeveritySevere {
		t.Errorf("Expected severe cramps, got %s %s", rec.Symptoms[0].Severity, rec.Symptoms[0].Type)
	}
	if rec.Timing.Date != "2026-03-05" {
		t.Errorf("Expected yesterday resolved to 2026-03-05, got %q", rec.Timing.Date)
	}
	if !rec.UnusualSymptoms {
		t.Error("Severe symptom should set the unusual flag")
	}
	if rec.Confidence != 0.78 {
		t.Errorf("Expected confidence 0.78 for four categories, got %f", rec.Confidence)
	}
	if len(rec.MissingSlots()) != 0 {
		t.Errorf("Complete utterance should fill both slots, got missing=%v", rec.MissingSlots())
	}
}

// TestKeywordExtractor_EmptyTranscript verifies an empty input yields an
// empty record with zero confidence and both slots missing, not an error.
func TestKeywordExtractor_EmptyTranscript(t *testing.T) {
	k := newTestKeywordExtractor()
	for _, input := range []string{"", "   ", "\n\t"} {
		rec, err := k.Extract(context.Background(), input)
		if err != nil {
			t.Fatalf("Extract(%q) failed: %v", input, err)
		}
		if !rec.IsEmpty() {
			t.Errorf("Extract(%q) should yield an empty record, got %+v", input, rec)
		}
		if rec.Confidence != 0 {
			t.Errorf("Extract(%q) confidence = %f, want 0", input, rec.Confidence)
		}
		missing := rec.MissingSlots()
		if len(missing) != 2 {
			t.Errorf("Extract(%q) missing = %v, want both slots", input, missing)
		}
	}
}

// TestKeywordExtractor_FlowPriority checks that spotting wins over light
// when both phrases appear, and that heavy outranks everything.
func TestKeywordExtractor_FlowPriority(t *testing.T) {
	k := newTestKeywordExtractor()

	rec, _ := k.Extract(context.Background(), "just some light spotting this morning")
	if rec.Period.Flow != models.FlowSpotting {
		t.Errorf("Expected spotting to win over light, got %q", rec.Period.Flow)
	}

	rec, _ = k.Extract(context.Background(), "it was light at first but got really heavy")
	if rec.Period.Flow != models.FlowHeavy {
		t.Errorf("Expected heavy to win, got %q", rec.Period.Flow)
	}
}

// TestKeywordExtractor_WordBoundaries verifies keyword matches respect word
// boundaries: "light" must not fire inside "slightly".
func TestKeywordExtractor_WordBoundaries(t *testing.T) {
	k := newTestKeywordExtractor()
	rec, _ := k.Extract(context.Background(), "feeling slightly tired today")

	if rec.Period.Flow != "" {
		t.Errorf("No flow should match inside 'slightly', got %q", rec.Period.Flow)
	}
	if len(rec.Symptoms) != 1 || rec.Symptoms[0].Type != "fatigue" {
		t.Fatalf("Expected fatigue from 'tired', got %+v", rec.Symptoms)
	}
	if rec.Symptoms[0].Severity != models.SeverityMild {
		t.Errorf("'slightly' qualifier should read mild, got %q", rec.Symptoms[0].Severity)
	}
	if rec.Timing.Date != "2026-03-06" {
		t.Errorf("Expected today resolved to 2026-03-06, got %q", rec.Timing.Date)
	}
}

// TestKeywordExtractor_SeverityWindow checks that a qualifier only applies
// to the symptom it precedes, not to every symptom in the sentence.
func TestKeywordExtractor_SeverityWindow(t *testing.T) {
	k := newTestKeywordExtractor()
	rec, _ := k.Extract(context.Background(), "I had severe pain this morning but only mild cramps")

	bySeverity := map[string]string{}
	for _, s := range rec.Symptoms {
		bySeverity[s.Type] = s.Severity
	}
	if bySeverity["pain"] != models.SeveritySevere {
		t.Errorf("Expected severe pain, got %q", bySeverity["pain"])
	}
	if bySeverity["cramps"] != models.SeverityMild {
		t.Errorf("Expected mild cramps, got %q", bySeverity["cramps"])
	}
	if rec.Timing.TimeOfDay != "morning" {
		t.Errorf("Expected morning, got %q", rec.Timing.TimeOfDay)
	}
}

// TestKeywordExtractor_UnqualifiedSymptomDefaultsMild verifies the severity
// fallback when no qualifier appears near the symptom.
func TestKeywordExtractor_UnqualifiedSymptomDefaultsMild(t *testing.T) {
	k := newTestKeywordExtractor()
	rec, _ := k.Extract(context.Background(), "I have a headache")

	if len(rec.Symptoms) != 1 {
		t.Fatalf("Expected 1 symptom, got %+v", rec.Symptoms)
	}
	if rec.Symptoms[0].Severity != models.SeverityMild {
		t.Errorf("Unqualified symptom should default to mild, got %q", rec.Symptoms[0].Severity)
	}
}

// TestKeywordExtractor_Moods checks mood extraction with the default
// moderate intensity and multiple states in one utterance.
func TestKeywordExtractor_Moods(t *testing.T) {
	k := newTestKeywordExtractor()
	rec, _ := k.Extract(context.Background(), "been feeling anxious and irritable today")

	if len(rec.Mood) != 2 {
		t.Fatalf("Expected 2 mood entries, got %+v", rec.Mood)
	}
	states := map[string]string{}
	for _, m := range rec.Mood {
		states[m.State] = m.Intensity
	}
	if states["anxious"] != "moderate" || states["irritable"] != "moderate" {
		t.Errorf("Expected moderate intensity defaults, got %v", states)
	}
	if rec.UnusualSymptoms {
		t.Error("Moods alone should not set the unusual flag")
	}
}

// TestKeywordExtractor_Duration covers the duration phrasings the regex
// accepts and one it must ignore.
func TestKeywordExtractor_Duration(t *testing.T) {
	k := newTestKeywordExtractor()
	cases := []struct {
		text string
		want int
	}{
		{"my period lasted 6 days", 6},
		{"it's been going for the past 3 days", 3},
		{"bleeding for 5 days now", 5},
		{"one day of spotting", 0},
	}
	for _, tc := range cases {
		rec, _ := k.Extract(context.Background(), tc.text)
		if rec.Period.DurationDays != tc.want {
			t.Errorf("Extract(%q) duration = %d, want %d", tc.text, rec.Period.DurationDays, tc.want)
		}
	}
}

// TestKeywordExtractor_RelativeDates resolves every supported relative
// phrase against the pinned Friday.
func TestKeywordExtractor_RelativeDates(t *testing.T) {
	k := newTestKeywordExtractor()
	cases := []struct {
		text string
		want string
	}{
		{"my period started today", "2026-03-06"},
		{"it began yesterday", "2026-03-05"},
		{"started the day before yesterday", "2026-03-04"},
		{"cramps started 3 days ago", "2026-03-03"},
		{"my period started on tuesday", "2026-03-03"},
		{"it came on wednesday evening", "2026-03-04"},
		{"woke up with cramps last night", "2026-03-05"},
		{"no date mentioned here", ""},
	}
	for _, tc := range cases {
		rec, _ := k.Extract(context.Background(), tc.text)
		if rec.Timing.Date != tc.want {
			t.Errorf("Extract(%q) date = %q, want %q", tc.text, rec.Timing.Date, tc.want)
		}
	}
}

// TestKeywordExtractor_StatusEnd verifies end phrasings map to the end
// status without tripping the start table.
func TestKeywordExtractor_StatusEnd(t *testing.T) {
	k := newTestKeywordExtractor()
	rec, _ := k.Extract(context.Background(), "my period stopped today")
	if rec.Period.Status != models.PeriodEnd {
		t.Errorf("Expected status end, got %q", rec.Period.Status)
	}

	rec, _ = k.Extract(context.Background(), "no period this month")
	if rec.Period.Status != models.PeriodNone {
		t.Errorf("Expected status none, got %q", rec.Period.Status)
	}
}

// TestKeywordExtractor_UnusualFromTranscript checks the unusual screen also
// scans the raw transcript, not just extracted symptom fields.
func TestKeywordExtractor_UnusualFromTranscript(t *testing.T) {
	k := newTestKeywordExtractor()
	rec, _ := k.Extract(context.Background(), "I fainted this morning")
	if !rec.UnusualSymptoms {
		t.Error("Fainting in the transcript should set the unusual flag")
	}

	rec, _ = k.Extract(context.Background(), "light flow, mild cramps, feeling fine")
	if rec.UnusualSymptoms {
		t.Error("Routine note should not set the unusual flag")
	}
}

// TestKeywordExtractor_SetLexicon verifies a hot-swapped lexicon takes
// effect on the next extraction.
func TestKeywordExtractor_SetLexicon(t *testing.T) {
	k := newTestKeywordExtractor()

	rec, _ := k.Extract(context.Background(), "flooding through everything")
	if rec.Period.Flow != "" {
		t.Fatalf("Default lexicon should not know 'flooding', got %q", rec.Period.Flow)
	}

	custom := DefaultLexicon()
	custom.FlowKeywords["heavy"] = append(custom.FlowKeywords["heavy"], "flooding")
	k.SetLexicon(custom)

	rec, _ = k.Extract(context.Background(), "flooding through everything")
	if rec.Period.Flow != models.FlowHeavy {
		t.Errorf("Custom lexicon should map 'flooding' to heavy, got %q", rec.Period.Flow)
	}

	k.SetLexicon(nil)
	rec, _ = k.Extract(context.Background(), "flooding through everything")
	if rec.Period.Flow != models.FlowHeavy {
		t.Error("SetLexicon(nil) should keep the previous lexicon")
	}
}

// TestKeywordExtractor_Engine checks the engine label used in metrics.
func TestKeywordExtractor_Engine(t *testing.T) {
	if got := NewKeywordExtractor(nil).Engine(); got != EngineKeyword {
		t.Errorf("Engine() = %q, want %q", got, EngineKeyword)
	}
}

func BenchmarkKeywordExtract(b *testing.B) {
	k := NewKeywordExtractor(nil)
	text := "I started my period yesterday and it's been heavy all day with severe cramps"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := k.Extract(context.Background(), text); err != nil {
			b.Fatal(err)
		}
	}
}
