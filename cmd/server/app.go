package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tasktide/conflict-engine/internal/config"
	"github.com/tasktide/conflict-engine/internal/domain"
	"github.com/tasktide/conflict-engine/internal/domain/ranking"
	"github.com/tasktide/conflict-engine/internal/engine"
	"github.com/tasktide/conflict-engine/internal/enrichment"
	"github.com/tasktide/conflict-engine/internal/events"
	"github.com/tasktide/conflict-engine/internal/platform/gemini"
	"github.com/tasktide/conflict-engine/internal/platform/postgres"
	"github.com/tasktide/conflict-engine/internal/service"
	"github.com/tasktide/conflict-engine/internal/store"
	"github.com/tasktide/conflict-engine/internal/task"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	// Stores
	conflictStore     store.ConflictStore
	suggestionStore   store.SuggestionStore
	feedbackStore     store.FeedbackStore
	learningStore     store.LearningStore
	notificationStore store.NotificationStore
	taskStore         task.TaskStore

	// Engine components
	scanner   *engine.Scanner
	guarantor *engine.NotificationGuarantor
	ranker    ranking.Service
	enricher  enrichment.Enricher

	// Services
	conflictService service.ConflictService

	// Event system
	eventEmitter events.EventEmitter

	// Task handling
	taskRunner *task.TaskRunner
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger and
// database connection that must be established before application
// initialization.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Stores
	app.conflictStore = postgres.NewPostgresConflictStore(db, logger)
	app.suggestionStore = postgres.NewPostgresSuggestionStore(db, logger)
	app.feedbackStore = postgres.NewPostgresFeedbackStore(db, logger)
	app.learningStore = postgres.NewPostgresLearningStore(db, logger)
	app.notificationStore = postgres.NewPostgresNotificationStore(db, logger)

	// Ranking service
	app.ranker = ranking.NewServiceWithParams(ranking.NewParams(ranking.ParamsConfig{
		MinSamples:    cfg.Engine.MinSamples,
		LearningRate:  cfg.Engine.LearningRate,
		MaxAdjustment: cfg.Engine.MaxAdjustment,
	}))

	// LLM enrichment is optional: without an API key the candidate
	// generator falls back to heuristic rationales.
	enricher, err := gemini.NewEnricher(ctx, logger.With(slog.String("component", "llm_enricher")), cfg.LLM)
	switch {
	case err == nil:
		app.enricher = enricher
		logger.Info("LLM enricher initialized")
	case errors.Is(err, enrichment.ErrInvalidConfig):
		logger.Warn("LLM enrichment disabled", slog.String("reason", err.Error()))
	default:
		return nil, fmt.Errorf("failed to initialize LLM enricher: %w", err)
	}

	// Engine
	detectors := []engine.Detector{
		engine.NewOverloadDetector(cfg.Engine.EvaluationWindowDays, cfg.Engine.OverloadThresholdRatio),
		engine.NewScheduleDetector(),
		engine.NewDependencyDetector(cfg.Engine.MaxDependencyDepth),
	}

	generator := engine.NewCandidateGenerator(
		app.learningStore,
		app.ranker,
		app.enricher,
		cfg.Engine.EnrichmentTimeout,
		logger,
	)

	app.guarantor = engine.NewNotificationGuarantor(
		app.conflictStore,
		app.notificationStore,
		domain.NotificationChannelInApp,
		logger,
	)

	snapshotSource := postgres.NewPostgresSnapshotSource(db, logger)

	app.scanner = engine.NewScanner(
		db,
		snapshotSource,
		detectors,
		engine.NewDeduplicator(logger),
		generator,
		app.guarantor,
		app.conflictStore,
		app.suggestionStore,
		logger,
	)

	// Task processing: the factory both creates fresh scan tasks and
	// rehydrates persisted ones during crash recovery.
	taskFactory := task.NewScopeScanTaskFactory(app.scanner, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, taskFactory, logger)

	app.taskRunner, err = setupTaskRunner(app)
	if err != nil {
		return nil, fmt.Errorf("failed to setup task runner: %w", err)
	}

	// Event system: scan requests are emitted by the service and turned
	// into background tasks by the handler.
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(task.NewScanRequestEventHandler(taskFactory, app.taskRunner, logger))
	app.eventEmitter = emitter

	// Conflict service
	app.conflictService, err = service.NewConflictService(
		db,
		app.conflictStore,
		app.suggestionStore,
		app.feedbackStore,
		app.learningStore,
		app.ranker,
		app.guarantor,
		app.scanner,
		app.eventEmitter,
		app.notificationStore,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conflict service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// setupTaskRunner initializes and starts the background task processor.
func setupTaskRunner(app *application) (*task.TaskRunner, error) {
	taskRunner := task.NewTaskRunner(app.taskStore, task.TaskRunnerConfig{
		WorkerCount:  app.config.Task.WorkerCount,
		QueueSize:    app.config.Task.QueueSize,
		StuckTaskAge: app.config.Task.StuckTaskAge,
	}, app.logger)

	if err := taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	return taskRunner, nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.taskRunner != nil {
		app.taskRunner.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("Application shutdown completed")
}
