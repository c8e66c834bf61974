package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port     string
	Env      string // "development" or "production"
	DataDir  string
	AudioDir string

	// Journal configuration
	MongoURI        string
	JournalDisabled bool

	// Extraction configuration
	ExtractorEngine    string // "keyword" or "llm"
	LLMBaseURL         string
	LLMAPIKey          string
	LLMModel           string
	LLMFallbackBaseURL string
	LLMFallbackAPIKey  string
	LLMFallbackModel   string
	LLMRequestsPerSec  float64
	LLMTimeout         time.Duration
	LexiconPath        string

	// Dialog configuration
	MaxTurns   int
	SessionTTL time.Duration

	// Speech configuration
	WhisperBaseURL    string
	WhisperAPIKey     string
	WhisperModel      string
	AssemblyAIAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	SpeechPlayback    bool

	// Background job configuration
	JanitorInterval time.Duration
	ClipTTL         time.Duration
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8099"),
		Env:      getEnv("APP_ENV", "development"),
		DataDir:  getEnv("DATA_DIR", "./data"),
		AudioDir: getEnv("AUDIO_DIR", "./audio_responses"),

		// Journal configuration
		MongoURI:        getEnv("MONGODB_URI", ""),
		JournalDisabled: getBoolEnv("JOURNAL_DISABLED", false),

		// Extraction configuration
		ExtractorEngine:    getEnv("EXTRACTOR_ENGINE", "keyword"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMFallbackBaseURL: getEnv("LLM_FALLBACK_BASE_URL", ""),
		LLMFallbackAPIKey:  getEnv("LLM_FALLBACK_API_KEY", ""),
		LLMFallbackModel:   getEnv("LLM_FALLBACK_MODEL", ""),
		LLMRequestsPerSec:  getFloatEnv("LLM_RPS", 2),
		LLMTimeout:         getDurationEnv("LLM_TIMEOUT", 60*time.Second),
		LexiconPath:        getEnv("LEXICON_PATH", ""),

		// Dialog configuration
		MaxTurns:   getIntEnv("MAX_TURNS", 5),
		SessionTTL: getDurationEnv("SESSION_TTL", 30*time.Minute),

		// Speech configuration
		WhisperBaseURL:    getEnv("WHISPER_BASE_URL", "https://api.openai.com/v1"),
		WhisperAPIKey:     getEnv("WHISPER_API_KEY", ""),
		WhisperModel:      getEnv("WHISPER_MODEL", "whisper-1"),
		AssemblyAIAPIKey:  getEnv("ASSEMBLYAI_API_KEY", ""),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsAPIKey:  getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID: getEnv("ELEVENLABS_VOICE_ID", ""),
		SpeechPlayback:    getBoolEnv("SPEECH_PLAYBACK", false),

		// Background job configuration
		JanitorInterval: getDurationEnv("JANITOR_INTERVAL", 5*time.Minute),
		ClipTTL:         getDurationEnv("CLIP_TTL", time.Hour),
	}
}

// SQLitePath returns the journal database location under DataDir.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "lunara.db")
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
