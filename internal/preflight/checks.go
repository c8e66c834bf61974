package preflight

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"lunara/internal/config"
	"lunara/internal/database"
	"lunara/internal/extraction"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before the server starts
type Checker struct {
	cfg *config.Config
	db  *database.DB // nil when the SQLite journal is not in use
}

// NewChecker creates a new preflight checker. db may be nil when the
// journal is disabled or backed by MongoDB.
func NewChecker(cfg *config.Config, db *database.DB) *Checker {
	return &Checker{cfg: cfg, db: db}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkDataDir(),
		c.checkJournalConnection(),
		c.checkJournalSchema(),
		c.checkSpeechProviders(),
		c.checkExtraction(),
	}

	// Print summary
	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("\n📊 Pre-flight summary: %d passed, %d failed, %d warnings\n", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

// checkDataDir verifies the data directory exists and is writable
func (c *Checker) checkDataDir() CheckResult {
	if err := os.MkdirAll(c.cfg.DataDir, 0755); err != nil {
		return CheckResult{
			Name:    "Data Directory",
			Status:  "fail",
			Message: fmt.Sprintf("Cannot create data directory '%s'", c.cfg.DataDir),
			Error:   err,
		}
	}

	probe := filepath.Join(c.cfg.DataDir, ".preflight")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return CheckResult{
			Name:    "Data Directory",
			Status:  "fail",
			Message: fmt.Sprintf("Data directory '%s' is not writable", c.cfg.DataDir),
			Error:   err,
		}
	}
	os.Remove(probe)

	return CheckResult{
		Name:    "Data Directory",
		Status:  "pass",
		Message: fmt.Sprintf("'%s' is writable", c.cfg.DataDir),
	}
}

// checkJournalConnection verifies journal database connectivity
func (c *Checker) checkJournalConnection() CheckResult {
	if c.db == nil {
		return CheckResult{
			Name:    "Journal Connection",
			Status:  "pass",
			Message: "Skipped (SQLite journal not in use)",
		}
	}

	if err := c.db.Ping(); err != nil {
		return CheckResult{
			Name:    "Journal Connection",
			Status:  "fail",
			Message: "Cannot connect to journal database",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Journal Connection",
		Status:  "pass",
		Message: "Journal database connection successful",
	}
}

// checkJournalSchema verifies all required tables exist
func (c *Checker) checkJournalSchema() CheckResult {
	if c.db == nil {
		return CheckResult{
			Name:    "Journal Schema",
			Status:  "pass",
			Message: "Skipped (SQLite journal not in use)",
		}
	}

	requiredTables := []string{
		"sessions",
		"session_logs",
		"session_turns",
	}

	for _, table := range requiredTables {
		var count int
		query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
		err := c.db.QueryRow(query, table).Scan(&count)
		if err != nil || count == 0 {
			return CheckResult{
				Name:    "Journal Schema",
				Status:  "fail",
				Message: fmt.Sprintf("Required table '%s' not found", table),
				Error:   err,
			}
		}
	}

	return CheckResult{
		Name:    "Journal Schema",
		Status:  "pass",
		Message: fmt.Sprintf("All %d required tables exist", len(requiredTables)),
	}
}

// checkSpeechProviders reports which speech providers are configured
func (c *Checker) checkSpeechProviders() CheckResult {
	hasSTT := c.cfg.WhisperAPIKey != "" || c.cfg.AssemblyAIAPIKey != ""
	hasTTS := c.cfg.ElevenLabsAPIKey != ""

	if !hasSTT && !hasTTS {
		return CheckResult{
			Name:    "Speech Providers",
			Status:  "warning",
			Message: "No STT or TTS provider configured (text-only mode)",
		}
	}
	if !hasSTT {
		return CheckResult{
			Name:    "Speech Providers",
			Status:  "warning",
			Message: "No STT provider configured - turns must include a text field",
		}
	}
	if !hasTTS {
		return CheckResult{
			Name:    "Speech Providers",
			Status:  "warning",
			Message: "No TTS provider configured - voice responses disabled",
		}
	}

	return CheckResult{
		Name:    "Speech Providers",
		Status:  "pass",
		Message: "STT and TTS providers configured",
	}
}

// checkExtraction reports which extraction engine will be used
func (c *Checker) checkExtraction() CheckResult {
	if c.cfg.ExtractorEngine != extraction.EngineLLM {
		return CheckResult{
			Name:    "Extraction",
			Status:  "pass",
			Message: "Keyword extraction engine selected",
		}
	}
	if c.cfg.LLMBaseURL == "" {
		return CheckResult{
			Name:    "Extraction",
			Status:  "warning",
			Message: "EXTRACTOR_ENGINE=llm without LLM_BASE_URL - falling back to keyword extraction",
		}
	}
	if c.cfg.LLMAPIKey == "" {
		return CheckResult{
			Name:    "Extraction",
			Status:  "warning",
			Message: "LLM_BASE_URL set without LLM_API_KEY - requests may be rejected",
		}
	}

	return CheckResult{
		Name:    "Extraction",
		Status:  "pass",
		Message: fmt.Sprintf("LLM extraction configured (%s)", c.cfg.LLMModel),
	}
}
