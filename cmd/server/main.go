package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"lunara/internal/config"
	"lunara/internal/database"
	"lunara/internal/dialog"
	"lunara/internal/extraction"
	"lunara/internal/handlers"
	"lunara/internal/jobs"
	"lunara/internal/journal"
	"lunara/internal/logging"
	"lunara/internal/middleware"
	"lunara/internal/preflight"
	"lunara/internal/services"
	"lunara/internal/speech"
	"lunara/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	log.Println("🚀 Starting Lunara Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Env: %s)", cfg.Port, cfg.Env)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init(cfg.IsProduction())

	// Select the session journal backend
	var sessionJournal store.Journal
	var sqliteDB *database.DB
	if cfg.JournalDisabled {
		log.Println("⚠️ JOURNAL_DISABLED set - sessions will not survive restarts")
	} else if cfg.MongoURI != "" {
		mongoDB, err := database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		defer mongoDB.Close(context.Background())

		if err := mongoDB.Initialize(context.Background()); err != nil {
			log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
		}
		sessionJournal = journal.NewMongo(mongoDB)
		log.Println("✅ MongoDB journal initialized")
	} else {
		db, err := database.New(cfg.SQLitePath())
		if err != nil {
			log.Fatalf("❌ Failed to open SQLite journal: %v", err)
		}
		defer db.Close()

		if err := db.Initialize(); err != nil {
			log.Fatalf("❌ Failed to initialize SQLite journal: %v", err)
		}
		sqliteDB = db
		sessionJournal = journal.NewSQLite(db)
		log.Println("✅ SQLite journal initialized")
	}

	// Run preflight checks
	checker := preflight.NewChecker(cfg, sqliteDB)
	results := checker.RunAll()

	// Exit if critical checks failed
	if preflight.HasFailures(results) {
		log.Println("\n❌ Pre-flight checks failed. Please fix the issues above before starting the server.")
		os.Exit(1)
	}

	log.Println("✅ All pre-flight checks passed")

	// Session store, with previous sessions replayed from the journal
	sessionStore := store.NewSessionStore(sessionJournal)
	if sessionJournal != nil {
		if err := sessionStore.Restore(); err != nil {
			log.Printf("⚠️ Failed to restore sessions from journal: %v", err)
		}
	}

	// Prometheus metrics
	metrics := services.InitMetrics(sessionStore)

	// Keyword extraction with optional custom lexicon and hot reload
	keywordExtractor := extraction.NewKeywordExtractor(nil)
	if cfg.LexiconPath != "" {
		lex, err := extraction.LoadLexicon(cfg.LexiconPath)
		if err != nil {
			log.Printf("⚠️ Failed to load lexicon from %s: %v", cfg.LexiconPath, err)
		} else {
			keywordExtractor.SetLexicon(lex)
			log.Printf("✅ Lexicon loaded from %s", cfg.LexiconPath)
			go watchLexiconFile(cfg.LexiconPath, keywordExtractor)
		}
	}

	// Extraction engine, keyword unless EXTRACTOR_ENGINE=llm
	var extractor extraction.Extractor = keywordExtractor
	if cfg.ExtractorEngine == extraction.EngineLLM {
		if cfg.LLMBaseURL == "" {
			log.Println("⚠️ EXTRACTOR_ENGINE=llm but LLM_BASE_URL not set - using keyword extraction")
		} else {
			extractor = extraction.NewLLMExtractor(extraction.LLMConfig{
				BaseURL:         cfg.LLMBaseURL,
				APIKey:          cfg.LLMAPIKey,
				Model:           cfg.LLMModel,
				FallbackBaseURL: cfg.LLMFallbackBaseURL,
				FallbackAPIKey:  cfg.LLMFallbackAPIKey,
				FallbackModel:   cfg.LLMFallbackModel,
				RequestsPerSec:  cfg.LLMRequestsPerSec,
				Timeout:         cfg.LLMTimeout,
			}, keywordExtractor)
			log.Printf("✅ LLM extraction enabled (%s)", cfg.LLMModel)
		}
	} else {
		log.Println("📖 Keyword extraction engine selected")
	}

	// Speech-to-text providers (optional)
	var transcribers []speech.Transcriber
	if cfg.WhisperAPIKey != "" {
		transcribers = append(transcribers, speech.NewWhisperTranscriber(cfg.WhisperBaseURL, cfg.WhisperAPIKey, cfg.WhisperModel))
		log.Printf("✅ Whisper transcription enabled (%s)", cfg.WhisperModel)
	}
	if cfg.AssemblyAIAPIKey != "" {
		transcribers = append(transcribers, speech.NewAssemblyAITranscriber(cfg.AssemblyAIAPIKey))
		log.Println("✅ AssemblyAI transcription enabled")
	}
	var transcriber speech.Transcriber
	if len(transcribers) > 0 {
		chain := speech.NewTranscriberChain(transcribers...)
		chain.SetMetrics(metrics)
		transcriber = chain
	} else {
		log.Println("⚠️ No STT provider configured - turns must include a text field")
	}

	// Text-to-speech (optional)
	var clipStore *speech.ClipStore
	var speaker *speech.Speaker
	if cfg.ElevenLabsAPIKey != "" {
		var err error
		clipStore, err = speech.NewClipStore(cfg.AudioDir, cfg.ClipTTL)
		if err != nil {
			log.Fatalf("❌ Failed to prepare audio directory: %v", err)
		}
		synth := speech.NewElevenLabsSynthesizer(cfg.ElevenLabsBaseURL, cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID)
		speaker = speech.NewSpeaker(synth, clipStore)
		speaker.SetMetrics(metrics)
		if cfg.SpeechPlayback {
			speaker.EnablePlayback()
			log.Println("🔊 Local audio playback enabled")
		}
		log.Println("✅ ElevenLabs synthesis enabled")
	} else {
		log.Println("⚠️ ELEVENLABS_API_KEY not set - voice responses disabled")
	}

	// Dialog manager
	manager := dialog.NewManager(sessionStore, extractor, cfg.MaxTurns)
	manager.SetMetrics(metrics)
	if speaker != nil {
		manager.SetVoice(speaker)
	}
	log.Printf("✅ Dialog manager initialized (max %d turns)", cfg.MaxTurns)

	// Background jobs
	runner, err := jobs.NewRunner()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	janitor := jobs.NewSessionJanitor(manager, cfg.SessionTTL)
	if err := runner.Every("session-janitor", cfg.JanitorInterval, janitor.Run); err != nil {
		log.Printf("⚠️ %v", err)
	}
	if clipStore != nil {
		sweeper := jobs.NewClipSweeper(clipStore)
		if err := runner.Every("clip-sweeper", cfg.JanitorInterval, sweeper.Run); err != nil {
			log.Printf("⚠️ %v", err)
		}
	}
	runner.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Lunara v1.0",
		ReadTimeout:  120 * time.Second, // transcribing long clips can be slow
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    30 * 1024 * 1024, // headroom over the 25MB audio upload cap
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("lunara")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Load rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Read=%d/min, Turns=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.ReadMax,
		rateLimitConfig.TurnMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		// Default to localhost for development
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", allowedOrigins)

	// Global API rate limiter - first line of defense
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(sessionStore, extractor.Engine(), transcriber != nil, speaker != nil)
	sessionHandler := handlers.NewSessionHandler(sessionStore, manager)
	turnHandler := handlers.NewTurnHandler(manager, transcriber)
	voiceHandler := handlers.NewVoiceHandler(clipStore)

	// Routes
	app.Get("/health", healthHandler.Handle)

	app.Post("/api/sessions", sessionHandler.Start)
	app.Get("/api/sessions", middleware.ReadRateLimiter(rateLimitConfig), sessionHandler.List)
	app.Get("/api/sessions/:id", middleware.ReadRateLimiter(rateLimitConfig), sessionHandler.Get)
	app.Post("/api/sessions/:id/end", sessionHandler.End)
	app.Post("/api/sessions/:id/turns", middleware.TurnRateLimiter(rateLimitConfig), turnHandler.Submit)
	app.Get("/api/stats", middleware.ReadRateLimiter(rateLimitConfig), sessionHandler.Stats)
	app.Get("/api/voice/audio/:name", middleware.ReadRateLimiter(rateLimitConfig), voiceHandler.Clip)

	log.Printf("🚀 Server starting on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("🎙️ Sessions endpoint: http://localhost:%s/api/sessions", cfg.Port)
	log.Printf("🕐 Background jobs: session janitor (every %v, TTL %v)", cfg.JanitorInterval, cfg.SessionTTL)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop background jobs
		if err := runner.Stop(); err != nil {
			log.Printf("⚠️ Error stopping job scheduler: %v", err)
		}

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// watchLexiconFile hot-reloads the keyword lexicon when the file changes
func watchLexiconFile(filePath string, extractor *extraction.KeywordExtractor) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	// Get absolute path for the file
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Only react to changes to our specific file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// React to write and create events
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				// Debounce: cancel previous timer and set a new one
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					lex, err := extraction.LoadLexicon(filePath)
					if err != nil {
						log.Printf("❌ Failed to reload lexicon after file change: %v", err)
						return
					}
					extractor.SetLexicon(lex)
					log.Printf("✅ Lexicon reloaded from %s", filePath)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
