package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"lunara/internal/models"
)

// System prompt for structured health record extraction
const extractionSystemPrompt = `You extract menstrual health information from voice note transcripts.

Rules:
- Extract ONLY what the speaker actually says. Never invent details.
- period.status: "start" if a period began, "end" if it finished, "none" if the speaker says there is no period, "" if not mentioned.
- period.flow: one of light, medium, heavy, spotting, or "" if not mentioned.
- Resolve relative dates ("yesterday", "two days ago") against the current date you are given and return ISO format YYYY-MM-DD.
- Severity must be one of mild, moderate, severe. Intensity must be one of low, moderate, high.
- confidence values are between 0 and 1 and reflect how explicit the speaker was.
- Set unusual_symptoms true when the speaker describes severe, abnormal or alarming symptoms.`

// healthRecordSchema is the strict structured-output schema sent with
// every extraction request.
var healthRecordSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"period": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"status": map[string]interface{}{
					"type": "string",
					"enum": []string{"", "start", "end", "none"},
				},
				"flow": map[string]interface{}{
					"type": "string",
					"enum": []string{"", "light", "medium", "heavy", "spotting"},
				},
				"duration_days": map[string]interface{}{
					"type":    "integer",
					"minimum": 0,
				},
			},
			"required":             []string{"status", "flow", "duration_days"},
			"additionalProperties": false,
		},
		"symptoms": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"type": map[string]interface{}{"type": "string"},
					"severity": map[string]interface{}{
						"type": "string",
						"enum": []string{"mild", "moderate", "severe"},
					},
					"confidence": map[string]interface{}{"type": "number"},
				},
				"required":             []string{"type", "severity", "confidence"},
				"additionalProperties": false,
			},
		},
		"mood": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"state": map[string]interface{}{"type": "string"},
					"intensity": map[string]interface{}{
						"type": "string",
						"enum": []string{"low", "moderate", "high"},
					},
					"confidence": map[string]interface{}{"type": "number"},
				},
				"required":             []string{"state", "intensity", "confidence"},
				"additionalProperties": false,
			},
		},
		"timing": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"date": map[string]interface{}{"type": "string"},
				"time_of_day": map[string]interface{}{
					"type": "string",
					"enum": []string{"", "morning", "afternoon", "evening", "night"},
				},
			},
			"required":             []string{"date", "time_of_day"},
			"additionalProperties": false,
		},
		"confidence":       map[string]interface{}{"type": "number"},
		"unusual_symptoms": map[string]interface{}{"type": "boolean"},
	},
	"required":             []string{"period", "symptoms", "mood", "timing", "confidence", "unusual_symptoms"},
	"additionalProperties": false,
}

// LLMConfig configures the chat-completions extraction engine.
type LLMConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	FallbackBaseURL string
	FallbackAPIKey  string
	FallbackModel   string
	RequestsPerSec  float64
	Timeout         time.Duration
}

type llmAttempt struct {
	baseURL string
	apiKey  string
	model   string
}

// LLMExtractor calls an OpenAI-compatible chat completions endpoint with
// a strict JSON schema. Any failure (transport, HTTP error, malformed or
// schema-violating output) degrades to the keyword engine with the record
// confidence forced to 0.5 and ErrExtractionDegraded attached.
type LLMExtractor struct {
	attempts []llmAttempt
	client   *http.Client
	limiter  *rate.Limiter
	fallback *KeywordExtractor
	now      func() time.Time
}

// NewLLMExtractor builds the engine. fallback must not be nil; it handles
// empty transcripts and every failure path.
func NewLLMExtractor(cfg LLMConfig, fallback *KeywordExtractor) *LLMExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}

	attempts := []llmAttempt{{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, model: cfg.Model}}
	if cfg.FallbackBaseURL != "" {
		key := cfg.FallbackAPIKey
		if key == "" {
			key = cfg.APIKey
		}
		model := cfg.FallbackModel
		if model == "" {
			model = cfg.Model
		}
		attempts = append(attempts, llmAttempt{baseURL: cfg.FallbackBaseURL, apiKey: key, model: model})
	}

	return &LLMExtractor{
		attempts: attempts,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		fallback: fallback,
		now:      time.Now,
	}
}

func (e *LLMExtractor) Engine() string { return EngineLLM }

func (e *LLMExtractor) Extract(ctx context.Context, text string) (*models.HealthRecord, error) {
	if strings.TrimSpace(text) == "" {
		return e.fallback.Extract(ctx, text)
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return e.degrade(ctx, text, err)
	}

	var lastErr error
	for i, attempt := range e.attempts {
		rec, err := e.tryExtract(ctx, attempt, text)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		log.Printf("⚠️ [EXTRACTION] Attempt %d/%d against %s failed: %v", i+1, len(e.attempts), attempt.baseURL, err)
	}
	return e.degrade(ctx, text, lastErr)
}

// degrade runs the keyword fallback and marks the result. The fallback
// record always comes back usable; the error is a warning, not a failure.
func (e *LLMExtractor) degrade(ctx context.Context, text string, cause error) (*models.HealthRecord, error) {
	rec, _ := e.fallback.Extract(ctx, text)
	rec.Confidence = 0.5
	return rec, fmt.Errorf("llm extraction failed (%v): %w", cause, ErrExtractionDegraded)
}

func (e *LLMExtractor) tryExtract(ctx context.Context, attempt llmAttempt, text string) (*models.HealthRecord, error) {
	userPrompt := fmt.Sprintf("Current date: %s\n\nTRANSCRIPT:\n%s", e.now().UTC().Format("2006-01-02"), text)

	requestBody := map[string]interface{}{
		"model": attempt.model,
		"messages": []map[string]interface{}{
			{"role": "system", "content": extractionSystemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"stream":      false,
		"temperature": 0.1,
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   "health_record",
				"strict": true,
				"schema": healthRecordSchema,
			},
		},
	}

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", strings.TrimSuffix(attempt.baseURL, "/")+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if attempt.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+attempt.apiKey)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(apiResponse.Choices) == 0 {
		return nil, fmt.Errorf("no choices in extractor response")
	}

	content := apiResponse.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty content in extractor response")
	}

	var rec models.HealthRecord
	if err := json.Unmarshal([]byte(content), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse extraction (%d bytes): %w", len(content), err)
	}
	if err := e.normalize(&rec, text); err != nil {
		return nil, err
	}
	return &rec, nil
}

// normalize validates enums and ranges on model output and applies the
// deterministic post-processing no engine is trusted to do itself: raw
// text attachment and the unusual-symptom screen.
func (e *LLMExtractor) normalize(rec *models.HealthRecord, text string) error {
	rec.Period.Status = strings.ToLower(strings.TrimSpace(rec.Period.Status))
	switch rec.Period.Status {
	case "", models.PeriodStart, models.PeriodEnd, models.PeriodNone:
	default:
		return fmt.Errorf("invalid period status %q", rec.Period.Status)
	}

	rec.Period.Flow = strings.ToLower(strings.TrimSpace(rec.Period.Flow))
	switch rec.Period.Flow {
	case "", models.FlowLight, models.FlowMedium, models.FlowHeavy, models.FlowSpotting:
	default:
		return fmt.Errorf("invalid period flow %q", rec.Period.Flow)
	}

	if rec.Period.DurationDays < 0 {
		return fmt.Errorf("negative duration_days %d", rec.Period.DurationDays)
	}

	for i := range rec.Symptoms {
		s := &rec.Symptoms[i]
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		s.Severity = strings.ToLower(strings.TrimSpace(s.Severity))
		switch s.Severity {
		case models.SeverityMild, models.SeverityModerate, models.SeveritySevere:
		default:
			return fmt.Errorf("invalid symptom severity %q", s.Severity)
		}
		s.Confidence = clamp01(s.Confidence)
	}

	for i := range rec.Mood {
		m := &rec.Mood[i]
		m.State = strings.ToLower(strings.TrimSpace(m.State))
		m.Intensity = strings.ToLower(strings.TrimSpace(m.Intensity))
		if m.Intensity == "" {
			m.Intensity = "moderate"
		}
		m.Confidence = clamp01(m.Confidence)
	}

	rec.Timing.Date = strings.TrimSpace(rec.Timing.Date)
	if rec.Timing.Date != "" && !isoDateRe.MatchString(rec.Timing.Date) {
		if date, ok := resolveRelativeDate(strings.ToLower(rec.Timing.Date), e.now()); ok {
			rec.Timing.Date = date
		} else {
			rec.Timing.Date = ""
		}
	}
	switch rec.Timing.TimeOfDay {
	case "", "morning", "afternoon", "evening", "night":
	default:
		rec.Timing.TimeOfDay = ""
	}

	rec.Confidence = clamp01(rec.Confidence)
	rec.RawText = strings.TrimSpace(text)

	lex := e.fallback.lex.Load()
	lex.FlagUnusual(rec, strings.ToLower(rec.RawText))
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
