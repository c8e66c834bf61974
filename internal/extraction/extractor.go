package extraction

import (
	"context"
	"errors"

	"lunara/internal/models"
)

// Engine names accepted by EXTRACTOR_ENGINE.
const (
	EngineKeyword = "keyword"
	EngineLLM     = "llm"
)

// ErrExtractionDegraded marks a record produced by the rule-based fallback
// after the primary engine failed. Callers treat it as a warning: the
// returned record is always usable.
var ErrExtractionDegraded = errors.New("extraction degraded to keyword fallback")

// Extractor turns a transcript into a structured health record. Extract
// never panics and never returns a nil record with a nil error; when the
// primary engine fails the result comes from the keyword fallback together
// with ErrExtractionDegraded.
type Extractor interface {
	Extract(ctx context.Context, text string) (*models.HealthRecord, error)
	Engine() string
}
