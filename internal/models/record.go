package models

import (
	"strconv"
	"strings"
)

// Period status values
const (
	PeriodStart = "start"
	PeriodEnd   = "end"
	PeriodNone  = "none"
)

// Period flow values
const (
	FlowLight    = "light"
	FlowMedium   = "medium"
	FlowHeavy    = "heavy"
	FlowSpotting = "spotting"
)

// Symptom severity values
const (
	SeverityMild     = "mild"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

// Required slot names reported to callers when a record is incomplete.
const (
	SlotPeriod = "period"
	SlotDate   = "date"
)

// PeriodInfo describes the period event mentioned in a voice note.
// Empty fields mean the speaker did not mention them.
type PeriodInfo struct {
	Status       string `json:"status,omitempty"`
	Flow         string `json:"flow,omitempty"`
	DurationDays int    `json:"duration_days,omitempty"`
}

// Symptom is a single reported physical symptom.
type Symptom struct {
	Type       string  `json:"type"`
	Severity   string  `json:"severity"`
	Confidence float64 `json:"confidence"`
}

// MoodEntry is a single reported emotional state.
type MoodEntry struct {
	State      string  `json:"state"`
	Intensity  string  `json:"intensity"`
	Confidence float64 `json:"confidence"`
}

// Timing places the record in time. Date is an ISO day (relative phrases
// like "yesterday" are resolved during extraction).
type Timing struct {
	Date      string `json:"date,omitempty"`
	TimeOfDay string `json:"time_of_day,omitempty"`
}

// HealthRecord is one structured observation extracted from voice input.
// UnusualSymptoms is monotonic: once set it survives every later merge so
// a flagged entry is never silently unflagged.
type HealthRecord struct {
	Period          PeriodInfo  `json:"period"`
	Symptoms        []Symptom   `json:"symptoms,omitempty"`
	Mood            []MoodEntry `json:"mood,omitempty"`
	Timing          Timing      `json:"timing"`
	Confidence      float64     `json:"confidence"`
	UnusualSymptoms bool        `json:"unusual_symptoms"`
	RawText         string      `json:"raw_text,omitempty"`
}

// IsEmpty reports whether the record carries no extracted information.
func (r *HealthRecord) IsEmpty() bool {
	return r.Period.Status == "" && r.Period.Flow == "" && r.Period.DurationDays == 0 &&
		len(r.Symptoms) == 0 && len(r.Mood) == 0 &&
		r.Timing.Date == "" && r.Timing.TimeOfDay == ""
}

// MissingSlots returns the required slots the record has not filled yet.
// "period" is satisfied by any status or flow, "date" by a resolved timing
// date. Order is stable: period before date.
func (r *HealthRecord) MissingSlots() []string {
	var missing []string
	if r.Period.Status == "" && r.Period.Flow == "" {
		missing = append(missing, SlotPeriod)
	}
	if r.Timing.Date == "" {
		missing = append(missing, SlotDate)
	}
	return missing
}

// Clone returns a deep copy safe to mutate independently of the original.
func (r *HealthRecord) Clone() HealthRecord {
	out := *r
	if len(r.Symptoms) > 0 {
		out.Symptoms = append([]Symptom(nil), r.Symptoms...)
	}
	if len(r.Mood) > 0 {
		out.Mood = append([]MoodEntry(nil), r.Mood...)
	}
	return out
}

// Merge folds a newer extraction into the record. Scalars overwrite only
// when the update carries a value, symptom and mood lists union, raw text
// concatenates, and confidence keeps the highest value seen.
func (r *HealthRecord) Merge(update *HealthRecord) {
	if update == nil {
		return
	}
	if update.Period.Status != "" {
		r.Period.Status = update.Period.Status
	}
	if update.Period.Flow != "" {
		r.Period.Flow = update.Period.Flow
	}
	if update.Period.DurationDays > 0 {
		r.Period.DurationDays = update.Period.DurationDays
	}
	for _, s := range update.Symptoms {
		r.AddSymptom(s)
	}
	for _, m := range update.Mood {
		r.AddMood(m)
	}
	if update.Timing.Date != "" {
		r.Timing.Date = update.Timing.Date
	}
	if update.Timing.TimeOfDay != "" {
		r.Timing.TimeOfDay = update.Timing.TimeOfDay
	}
	if update.Confidence > r.Confidence {
		r.Confidence = update.Confidence
	}
	if update.UnusualSymptoms {
		r.UnusualSymptoms = true
	}
	if update.RawText != "" {
		if r.RawText != "" {
			r.RawText += " "
		}
		r.RawText += update.RawText
	}
}

// AddSymptom unions a symptom into the list, keyed by type+severity,
// keeping the higher confidence on duplicates.
func (r *HealthRecord) AddSymptom(s Symptom) {
	for i := range r.Symptoms {
		if r.Symptoms[i].Type == s.Type && r.Symptoms[i].Severity == s.Severity {
			if s.Confidence > r.Symptoms[i].Confidence {
				r.Symptoms[i].Confidence = s.Confidence
			}
			return
		}
	}
	r.Symptoms = append(r.Symptoms, s)
}

// AddMood unions a mood entry into the list, keyed by state+intensity.
func (r *HealthRecord) AddMood(m MoodEntry) {
	for i := range r.Mood {
		if r.Mood[i].State == m.State && r.Mood[i].Intensity == m.Intensity {
			if m.Confidence > r.Mood[i].Confidence {
				r.Mood[i].Confidence = m.Confidence
			}
			return
		}
	}
	r.Mood = append(r.Mood, m)
}

// Summary renders a short human-readable description of the record for
// spoken confirmations and log lines.
func (r *HealthRecord) Summary() string {
	var parts []string
	switch r.Period.Status {
	case PeriodStart:
		parts = append(parts, "period started")
	case PeriodEnd:
		parts = append(parts, "period ended")
	}
	if r.Period.Flow != "" {
		parts = append(parts, r.Period.Flow+" flow")
	}
	if r.Period.DurationDays > 0 {
		parts = append(parts, "lasting "+strconv.Itoa(r.Period.DurationDays)+" days")
	}
	for _, s := range r.Symptoms {
		parts = append(parts, s.Severity+" "+s.Type)
	}
	for _, m := range r.Mood {
		parts = append(parts, "feeling "+m.State)
	}
	if r.Timing.Date != "" {
		parts = append(parts, "on "+r.Timing.Date)
	}
	if len(parts) == 0 {
		return "no period details recorded"
	}
	return strings.Join(parts, ", ")
}
