package extraction

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"lunara/internal/models"
)

var (
	daysAgoRe  = regexp.MustCompile(`(\d+)\s+days?\s+ago`)
	durationRe = regexp.MustCompile(`(?:for|lasted|lasting|been)(?:\s+the)?(?:\s+past|\s+last)?\s+(\d+)\s+days?`)
	isoDateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var flowOrder = []string{"heavy", "spotting", "light", "medium"}
var statusOrder = []string{"start", "end", "none"}
var severityOrder = []string{"severe", "moderate", "mild"}

var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
}

// KeywordExtractor is the deterministic rule-based engine. It doubles as
// the failure fallback for the LLM engine, so it never returns an error:
// every input yields a record.
type KeywordExtractor struct {
	lex atomic.Pointer[Lexicon]
	now func() time.Time
}

// NewKeywordExtractor builds the engine around lex, falling back to the
// built-in tables when lex is nil.
func NewKeywordExtractor(lex *Lexicon) *KeywordExtractor {
	if lex == nil {
		lex = DefaultLexicon()
	}
	k := &KeywordExtractor{now: time.Now}
	k.lex.Store(lex)
	return k
}

// SetLexicon atomically swaps the keyword tables. The lexicon file
// watcher calls this on hot reload.
func (k *KeywordExtractor) SetLexicon(lex *Lexicon) {
	if lex != nil {
		k.lex.Store(lex)
	}
}

func (k *KeywordExtractor) Engine() string { return EngineKeyword }

// Extract scans the transcript against the lexicon tables. An empty or
// whitespace transcript yields an empty record with confidence zero.
func (k *KeywordExtractor) Extract(_ context.Context, text string) (*models.HealthRecord, error) {
	rec := &models.HealthRecord{}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return rec, nil
	}

	rec.RawText = trimmed
	lower := strings.ToLower(trimmed)
	lex := k.lex.Load()

	categories := 0
	if flow := matchCategory(lower, flowOrder, lex.FlowKeywords); flow != "" {
		rec.Period.Flow = flow
		categories++
	}
	if status := matchCategory(lower, statusOrder, lex.StatusKeywords); status != "" {
		rec.Period.Status = status
		categories++
	}
	if k.extractSymptoms(lower, lex, rec) {
		categories++
	}
	if k.extractMoods(lower, lex, rec) {
		categories++
	}
	if k.extractTiming(lower, rec) {
		categories++
	}
	k.extractDuration(lower, rec)

	rec.Confidence = 0.3 + 0.12*float64(categories)
	if rec.Confidence > 0.9 {
		rec.Confidence = 0.9
	}
	lex.FlagUnusual(rec, lower)
	return rec, nil
}

func (k *KeywordExtractor) extractSymptoms(text string, lex *Lexicon, rec *models.HealthRecord) bool {
	found := false
	for _, symptom := range sortedKeys(lex.SymptomKeywords) {
		for _, phrase := range lex.SymptomKeywords[symptom] {
			idx := phraseIndex(text, phrase)
			if idx < 0 {
				continue
			}
			rec.AddSymptom(models.Symptom{
				Type:       symptom,
				Severity:   qualifierNear(text, idx, lex.SeverityKeywords, models.SeverityMild),
				Confidence: 0.7,
			})
			found = true
			break
		}
	}
	return found
}

func (k *KeywordExtractor) extractMoods(text string, lex *Lexicon, rec *models.HealthRecord) bool {
	found := false
	for _, state := range sortedKeys(lex.MoodKeywords) {
		for _, phrase := range lex.MoodKeywords[state] {
			idx := phraseIndex(text, phrase)
			if idx < 0 {
				continue
			}
			rec.AddMood(models.MoodEntry{
				State:      state,
				Intensity:  moodIntensity(qualifierNear(text, idx, lex.SeverityKeywords, models.SeverityModerate)),
				Confidence: 0.6,
			})
			found = true
			break
		}
	}
	return found
}

func (k *KeywordExtractor) extractTiming(text string, rec *models.HealthRecord) bool {
	matched := false
	if date, ok := resolveRelativeDate(text, k.now()); ok {
		rec.Timing.Date = date
		matched = true
	}
	if tod := timeOfDay(text); tod != "" {
		rec.Timing.TimeOfDay = tod
		matched = true
	}
	return matched
}

func (k *KeywordExtractor) extractDuration(text string, rec *models.HealthRecord) {
	if m := durationRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			rec.Period.DurationDays = n
		}
	}
}

// FlagUnusual applies the unusual-symptom screen: lexicon terms are
// matched case-insensitively against every symptom type and severity plus
// the transcript itself, and a single hit latches the flag.
func (lex *Lexicon) FlagUnusual(rec *models.HealthRecord, lowerText string) {
	if rec.UnusualSymptoms {
		return
	}
	for _, term := range lex.UnusualTerms {
		term = strings.ToLower(term)
		for _, s := range rec.Symptoms {
			if containsPhrase(strings.ToLower(s.Type), term) || containsPhrase(strings.ToLower(s.Severity), term) {
				rec.UnusualSymptoms = true
				return
			}
		}
		if lowerText != "" && containsPhrase(lowerText, term) {
			rec.UnusualSymptoms = true
			return
		}
	}
}

// matchCategory returns the first value whose phrase table hits the text.
// Values named in order win over any extra values a custom lexicon adds.
func matchCategory(text string, order []string, table map[string][]string) string {
	tried := make(map[string]bool, len(order))
	for _, value := range order {
		tried[value] = true
		if phrasesMatch(text, table[value]) {
			return value
		}
	}
	for _, value := range sortedKeys(table) {
		if !tried[value] && phrasesMatch(text, table[value]) {
			return value
		}
	}
	return ""
}

func phrasesMatch(text string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(text, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// qualifierNear looks for a severity qualifier in the text immediately
// before a matched phrase, so "severe cramps" reads as severe while an
// unqualified mention falls back to def.
func qualifierNear(text string, idx int, table map[string][]string, def string) string {
	window := text[:idx]
	if len(window) > 30 {
		window = window[len(window)-30:]
	}
	for _, sev := range severityOrder {
		for _, q := range table[sev] {
			if containsPhrase(window, strings.ToLower(q)) {
				return sev
			}
		}
	}
	return def
}

func moodIntensity(severity string) string {
	switch severity {
	case models.SeveritySevere:
		return "high"
	case models.SeverityMild:
		return "low"
	default:
		return "moderate"
	}
}

// resolveRelativeDate turns relative phrases into an ISO day against now.
func resolveRelativeDate(text string, now time.Time) (string, bool) {
	iso := func(days int) string { return now.AddDate(0, 0, days).Format("2006-01-02") }

	switch {
	case containsPhrase(text, "day before yesterday"):
		return iso(-2), true
	case containsPhrase(text, "yesterday"), containsPhrase(text, "last night"):
		return iso(-1), true
	case containsPhrase(text, "today"), containsPhrase(text, "tonight"),
		containsPhrase(text, "this morning"), containsPhrase(text, "this afternoon"),
		containsPhrase(text, "this evening"):
		return iso(0), true
	}
	if m := daysAgoRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return iso(-n), true
		}
	}
	for _, wd := range weekdayNames {
		if containsPhrase(text, wd.name) {
			delta := int(now.Weekday()-wd.day+7) % 7
			return iso(-delta), true
		}
	}
	return "", false
}

func timeOfDay(text string) string {
	switch {
	case containsPhrase(text, "morning"):
		return "morning"
	case containsPhrase(text, "afternoon"):
		return "afternoon"
	case containsPhrase(text, "evening"):
		return "evening"
	case containsPhrase(text, "night"), containsPhrase(text, "tonight"):
		return "night"
	}
	return ""
}

// containsPhrase reports whether phrase occurs in text on word boundaries,
// so "light" never matches inside "slightly".
func containsPhrase(text, phrase string) bool {
	return phraseIndex(text, phrase) >= 0
}

func phraseIndex(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	start := 0
	for {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return -1
		}
		i := start + idx
		end := i + len(phrase)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			return i
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
