// Package main is the entry point for the podfund funding intelligence
// service. It analyzes per-pod spending and income history, derives
// funding recommendations and ranked suggestions, and evaluates
// automation rules that can adjust allocations within safety caps.
//
// The layering follows a simple discipline: the engine modules under
// internal/modules are pure computations over supplied collections;
// repositories own all persistence; the services layer wires the two;
// the HTTP server and cron scheduler are the only entry surfaces.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/podfund/internal/config"
	"github.com/aristath/podfund/internal/database"
	"github.com/aristath/podfund/internal/events"
	"github.com/aristath/podfund/internal/modules/automation"
	"github.com/aristath/podfund/internal/modules/dashboard"
	"github.com/aristath/podfund/internal/modules/funding"
	"github.com/aristath/podfund/internal/modules/income"
	"github.com/aristath/podfund/internal/modules/ledger"
	"github.com/aristath/podfund/internal/modules/pods"
	"github.com/aristath/podfund/internal/modules/spending"
	"github.com/aristath/podfund/internal/modules/suggestions"
	enginesync "github.com/aristath/podfund/internal/modules/sync"
	"github.com/aristath/podfund/internal/scheduler"
	"github.com/aristath/podfund/internal/server"
	"github.com/aristath/podfund/internal/services"
	"github.com/aristath/podfund/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Str("data_dir", cfg.DataDir).Int("port", cfg.Port).Msg("Starting podfund")

	// Three databases: the append-only transaction ledger, the pods
	// database (pods, income sources, rules, suggestions), and the
	// ephemeral analysis cache.
	ledgerDB, err := database.New(database.Config{
		Path: cfg.DatabasePath("ledger"), Profile: database.ProfileLedger, Name: "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger database")
	}
	defer ledgerDB.Close()

	podsDB, err := database.New(database.Config{
		Path: cfg.DatabasePath("pods"), Profile: database.ProfileStandard, Name: "pods",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open pods database")
	}
	defer podsDB.Close()

	cacheDB, err := database.New(database.Config{
		Path: cfg.DatabasePath("cache"), Profile: database.ProfileCache, Name: "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	// Repositories
	ledgerRepo := ledger.NewRepository(ledgerDB.Conn(), log)
	podRepo := pods.NewRepository(podsDB.Conn(), log)
	incomeRepo := income.NewRepository(podsDB.Conn(), log)
	ruleRepo := automation.NewRepository(podsDB.Conn(), log)
	suggestionRepo := suggestions.NewRepository(podsDB.Conn(), log)
	cacheStore := enginesync.NewCacheStore(cacheDB.Conn(), log)

	for name, init := range map[string]func() error{
		"ledger":      ledgerRepo.Init,
		"pods":        podRepo.Init,
		"income":      incomeRepo.Init,
		"automation":  ruleRepo.Init,
		"suggestions": suggestionRepo.Init,
		"cache":       cacheStore.Init,
	} {
		if err := init(); err != nil {
			log.Fatal().Err(err).Str("schema", name).Msg("Failed to initialize schema")
		}
	}

	// Engine
	bus := events.NewBus(log)
	analysisCache := enginesync.NewAnalysisCache(cacheStore, log)
	orchestrator := enginesync.NewOrchestrator(
		spending.NewAnalyzer(cfg.Engine.SpendingWindowMonths, log),
		income.NewAnalyzer(cfg.Engine.IncomeWindowMonths, log),
		funding.NewGenerator(log),
		suggestions.NewEngine(suggestions.LevenshteinSimilarity, log),
		dashboard.NewAggregator(log),
		automation.NewEvaluator(log),
		analysisCache,
		time.Duration(cfg.Engine.MaxAnalysisAgeHours)*time.Hour,
		log,
	)

	windowMonths := cfg.Engine.SpendingWindowMonths
	if cfg.Engine.IncomeWindowMonths > windowMonths {
		windowMonths = cfg.Engine.IncomeWindowMonths
	}
	engineService := services.NewEngineService(
		ledgerRepo, podRepo, incomeRepo, ruleRepo, suggestionRepo,
		orchestrator, automation.NewApplier(log), bus, windowMonths, log,
	)

	// Background refresh sweep
	refreshScheduler := scheduler.New(engineService, cfg.Engine.RefreshCron, log)
	if err := refreshScheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start refresh scheduler")
	}
	defer refreshScheduler.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:            log,
		Engine:         engineService,
		Bus:            bus,
		SystemHandlers: server.NewSystemHandlers([]*database.DB{ledgerDB, podsDB, cacheDB}, log),
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("podfund stopped")
}
