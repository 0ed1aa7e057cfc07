// Janus - Fraud risk scoring for public spending.
// Copyright (c) 2025 janus-audit
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/janus-audit/janus/internal/api"
	"github.com/janus-audit/janus/internal/bus"
	"github.com/janus-audit/janus/internal/cache"
	"github.com/janus-audit/janus/internal/casefile"
	"github.com/janus-audit/janus/internal/config"
	"github.com/janus-audit/janus/internal/domain"
	"github.com/janus-audit/janus/internal/history"
	"github.com/janus-audit/janus/internal/pipeline"
	"github.com/janus-audit/janus/internal/repository"
	"github.com/janus-audit/janus/internal/rules"
	"github.com/janus-audit/janus/internal/scoring"
	"github.com/janus-audit/janus/internal/validator"
	"github.com/janus-audit/janus/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logLevel := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting janus",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Scoring Engine
	engine, err := scoring.NewEngine(cfg.Scoring)
	if err != nil {
		slog.Error("failed to initialize scoring engine", "error", err)
		os.Exit(1)
	}
	slog.Info("scoring engine initialized",
		"flag_threshold", cfg.Scoring.FlagThreshold,
		"reporting_threshold", cfg.Scoring.Thresholds.Reporting(),
	)

	// Initialize Case History Service
	historySvc := history.NewService(repo, cacheImpl)
	slog.Info("case history service initialized")

	// Initialize Tag Rule Engine with prior-case getter
	tagger, err := rules.NewEngine(historySvc.Getter(), 100)
	if err != nil {
		slog.Error("failed to initialize tag rule engine", "error", err)
		os.Exit(1)
	}

	// Load tag rules: database rules win, builtins cover an empty table
	if err := loadRulesFromDatabase(ctx, repo, tagger); err != nil {
		slog.Error("failed to load tag rules", "error", err)
		os.Exit(1)
	}
	slog.Info("tag rule engine initialized", "rules_count", tagger.RulesCount())

	// Initialize Case Manager
	cases := casefile.NewManager(repo, cacheImpl, busImpl, engine, logger)

	// Initialize Pipeline
	pipe := pipeline.New(validator.New(cfg.Scoring.Weights), engine, cases, repo, logger, pipeline.Options{
		Tagger:     tagger,
		MaxWorkers: 20,
	})

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("JANUS_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, pipe)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("JANUS_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, pipe, cases, tagger, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("janus is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("janus shutdown complete")
}

// GlobalTenantID is used for rules that apply to all tenants.
const GlobalTenantID = "*"

// loadRulesFromDatabase loads tag rules from the database into the
// engine, falling back to the builtin triage set when the table is empty.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListTagRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list tag rules from database", "error", err)
		return engine.LoadRules(rules.BuiltinRules())
	}

	if len(dbRules) > 0 {
		slog.Info("loading tag rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no tag rules in database, loading builtin set")
	return engine.LoadRules(rules.BuiltinRules())
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                  JANUS                    ║")
	fmt.Println("  ║       Fraud Risk Scoring Engine           ║")
	fmt.Println("  ║    Every transaction, both faces seen.    ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score               - Score a transaction's module outputs")
	fmt.Println("    POST /score/batch         - Score a batch, ranked for review")
	fmt.Println("    GET  /cases               - List cases by priority")
	fmt.Println("    GET  /cases/{id}          - Get case by ID")
	fmt.Println("    GET  /cases/{id}/report   - Get evidence report (?format=text)")
	fmt.Println("    POST /cases/{id}/claim    - Claim a case for review")
	fmt.Println("    POST /cases/{id}/close    - Close a reviewed case")
	fmt.Println("    GET  /rules               - List tag rules")
	fmt.Println("    POST /rules               - Create a tag rule")
	fmt.Println("    POST /rules/reload        - Hot-reload rules from database")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
