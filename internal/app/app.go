package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/redactiq/internal/common"
	"github.com/ternarybob/redactiq/internal/handlers"
	"github.com/ternarybob/redactiq/internal/interfaces"
	"github.com/ternarybob/redactiq/internal/services/detection"
	"github.com/ternarybob/redactiq/internal/services/llm"
	"github.com/ternarybob/redactiq/internal/services/pdf"
	"github.com/ternarybob/redactiq/internal/services/sessions"
	"github.com/ternarybob/redactiq/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// LLM provider factory; nil when the AI detector is disabled
	LLMFactory *llm.ProviderFactory

	// PDF services
	Extractor *pdf.Extractor
	Redactor  *pdf.Redactor
	Reports   *pdf.Service

	// Detection and session lifecycle
	Scanner        *detection.Scanner
	SessionService *sessions.Service

	// HTTP handlers
	SessionHandler *handlers.SessionHandler
	SystemHandler  *handlers.SystemHandler

	ctx       context.Context
	cancelCtx context.CancelFunc
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initServices()
	app.initHandlers()

	logger.Info().
		Bool("ai_enabled", app.Scanner.AIDetector() != nil).
		Int("page_concurrency", cfg.Detection.PageConcurrency).
		Int("max_hits_per_term", cfg.Redaction.MaxHitsPerTerm).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices builds the pipeline: extractor, detectors, scanner, redactor, sessions
func (a *App) initServices() {
	a.Extractor = pdf.NewExtractor(a.Logger)
	a.Redactor = pdf.NewRedactor(a.Logger, a.Config.Redaction.MaxHitsPerTerm)
	a.Reports = pdf.NewService(a.Logger)

	a.Scanner = detection.NewScanner(
		a.Logger,
		a.Extractor,
		detection.NewRegexDetector(),
		a.initAIDetector(),
		detection.ScannerOptions{
			PageConcurrency: a.Config.Detection.PageConcurrency,
			AITimeout:       common.ParseDuration(a.Config.Detection.AITimeout, 60*time.Second),
		},
	)

	a.SessionService = sessions.NewService(
		a.Logger,
		a.StorageManager.SessionStorage(),
		a.Extractor,
		a.Redactor,
		a.Scanner,
		a.Config.Detection.CacheEntries,
	)
}

// initAIDetector returns the LLM-backed detector, or nil for pattern-only
// detection when it is disabled or no API key resolves
func (a *App) initAIDetector() interfaces.AIDetector {
	if !a.Config.Detection.AIEnabled {
		a.Logger.Info().Msg("AI detection disabled by configuration, using pattern detection only")
		return nil
	}

	factory := llm.NewProviderFactory(&a.Config.Gemini, &a.Config.Claude, &a.Config.LLM, a.Logger)
	model := a.Config.Detection.Model
	if !factory.Available(model) {
		a.Logger.Warn().
			Str("provider", string(factory.DetectProvider(model))).
			Msg("No API key found for the AI provider, using pattern detection only")
		return nil
	}

	a.LLMFactory = factory
	a.Logger.Info().
		Str("provider", string(factory.DetectProvider(model))).
		Str("model", model).
		Msg("AI detection enabled")

	return detection.NewLLMDetector(a.Logger, factory, model)
}

// initHandlers initializes HTTP handlers
func (a *App) initHandlers() {
	a.SessionHandler = handlers.NewSessionHandler(a.SessionService, a.Config.MaxUploadBytes(), a.Logger)
	a.SystemHandler = handlers.NewSystemHandler(a.Scanner.AIDetector() != nil, a.Logger)
}

// StartBackground starts the session sweeper. It stops when the app is closed.
func (a *App) StartBackground() {
	a.SessionService.StartSweeper(
		a.ctx,
		common.ParseDuration(a.Config.Sessions.TTL, time.Hour),
		common.ParseDuration(a.Config.Sessions.SweepInterval, 5*time.Minute),
	)
}

// Close stops background work and closes the database
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.LLMFactory != nil {
		if err := a.LLMFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close LLM providers")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
