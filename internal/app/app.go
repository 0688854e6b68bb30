// Package app wires the application components together and owns their
// lifecycle.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/common"
	"github.com/finsight/reportgen/internal/handlers"
	"github.com/finsight/reportgen/internal/interfaces"
	"github.com/finsight/reportgen/internal/scheduler"
	"github.com/finsight/reportgen/internal/services/llm"
	"github.com/finsight/reportgen/internal/services/reports"
	"github.com/finsight/reportgen/internal/services/sections"
	"github.com/finsight/reportgen/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB            *badger.BadgerDB
	ReportStorage interfaces.ReportStorage

	// Core pipeline
	Scheduler        *scheduler.Scheduler
	CompletionClient *llm.Client
	SectionGenerator *sections.Generator
	ReportService    *reports.Service

	// HTTP handlers
	ReportHandler *handlers.ReportHandler
	StatusHandler *handlers.StatusHandler
}

// New creates the application with all dependencies wired.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	db, err := badger.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	reportStorage := badger.NewReportStorage(db, logger)

	completionClient, err := llm.NewCompletionService(cfg, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize completion service: %w", err)
	}

	sectionGenerator := sections.NewGenerator(completionClient, cfg.Reports.TokenBudget, logger)
	sched := scheduler.NewFromConfig(&cfg.Scheduler, logger)
	reportService := reports.NewService(sched, sectionGenerator, reportStorage, logger)

	return &App{
		Config:           cfg,
		Logger:           logger,
		DB:               db,
		ReportStorage:    reportStorage,
		Scheduler:        sched,
		CompletionClient: completionClient,
		SectionGenerator: sectionGenerator,
		ReportService:    reportService,
		ReportHandler:    handlers.NewReportHandler(reportService, logger),
		StatusHandler:    handlers.NewStatusHandler(sched, logger),
	}, nil
}

// Start launches the background components.
func (a *App) Start() error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	return nil
}

// Close shuts the application down in reverse dependency order.
func (a *App) Close() error {
	a.Scheduler.Stop()

	if err := a.CompletionClient.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to close completion client")
	}
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	a.Logger.Info().Msg("Application shut down")
	return nil
}
