package dialog

import (
	"strings"

	"lunara/internal/models"
)

// Assistant-side dialog text.
const (
	GreetingMessage = "Hi! Tell me about your period, how you're feeling, or any symptoms, and I'll log it for you."

	questionFlow    = "Could you tell me about the flow intensity of your period? (light, medium, heavy)"
	questionStatus  = "Could you confirm if you started or ended your period?"
	questionDate    = "Could you tell me the date or when this happened?"
	questionGeneric = "Is there anything else you'd like to share about your period?"

	completeMessage = "Thank you for sharing your information. I've recorded your period details. Check back in soon!"
	partialMessage  = "Thanks for sharing. I've saved what you told me, and we can fill in the rest next time."
)

// NextQuestion picks the follow-up for the first unfilled slot, checked
// in priority order: flow, status, date. Returns "" when nothing is
// missing.
func NextQuestion(rec *models.HealthRecord) string {
	missing := rec.MissingSlots()
	if len(missing) == 0 {
		return ""
	}

	periodMissing := false
	dateMissing := false
	for _, slot := range missing {
		switch slot {
		case models.SlotPeriod:
			periodMissing = true
		case models.SlotDate:
			dateMissing = true
		}
	}

	switch {
	case periodMissing && rec.Period.Flow == "":
		return questionFlow
	case periodMissing && rec.Period.Status == "":
		return questionStatus
	case dateMissing:
		return questionDate
	default:
		return questionGeneric
	}
}

// Phrases that explicitly close a session regardless of missing slots.
// Exact matches cover bare answers like "no" to the generic question;
// the phrase list matches anywhere in longer utterances.
var (
	endExact = []string{"no", "nope", "nothing", "done", "stop", "bye", "no thanks"}

	endPhrases = []string{
		"that's all", "thats all", "that is all",
		"that's everything", "thats everything",
		"that's it", "thats it",
		"i'm done", "im done", "i am done",
		"nothing else", "nothing more",
		"goodbye", "good bye",
	}
)

// IsEndSignal reports whether the transcript is an explicit request to
// finish the session.
func IsEndSignal(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return false
	}
	for _, e := range endExact {
		if lower == e {
			return true
		}
	}
	for _, p := range endPhrases {
		if containsPhrase(lower, p) {
			return true
		}
	}
	return false
}

// containsPhrase matches on word boundaries so "stop" never fires inside
// "stopped".
func containsPhrase(text, phrase string) bool {
	start := 0
	for {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		i := start + idx
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
