// FinAgent advisory server. Exposes the HTTP chat API and orchestrates
// the guardrail, routing, interview, retrieval, debate, and synthesis
// stages per session.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finagent-io/finagent/pkg/api"
	"github.com/finagent-io/finagent/pkg/cleanup"
	"github.com/finagent-io/finagent/pkg/config"
	"github.com/finagent-io/finagent/pkg/database"
	"github.com/finagent-io/finagent/pkg/debate"
	"github.com/finagent-io/finagent/pkg/guardrail"
	"github.com/finagent-io/finagent/pkg/interview"
	"github.com/finagent-io/finagent/pkg/llm"
	"github.com/finagent-io/finagent/pkg/orchestrator"
	"github.com/finagent-io/finagent/pkg/retrieval"
	"github.com/finagent-io/finagent/pkg/router"
	"github.com/finagent-io/finagent/pkg/services"
	"github.com/finagent-io/finagent/pkg/session"
	"github.com/finagent-io/finagent/pkg/synthesis"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	slog.Info("Starting FinAgent", "http_port", httpPort, "config_dir", *configDir)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	stats := cfg.Stats()
	slog.Info("Configuration loaded",
		"profile_fields", stats.ProfileFields,
		"required_fields", stats.RequiredFields,
		"debate_rounds", stats.DebateRounds)

	// 2. Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	slog.Info("Connected to PostgreSQL database")

	// 3. Stores
	profileService := services.NewProfileService(dbClient.DB())
	reportService := services.NewReportService(dbClient.DB())
	productService := services.NewProductService(dbClient.DB())
	slog.Info("Services initialized")

	// 4. LLM client
	llmClient, err := llm.NewOpenAIClient(cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	slog.Info("LLM client initialized", "model", cfg.LLM.Model)

	// 5. Retrieval collaborators. Each is optional; an unconfigured
	// source is skipped in the preference order. The nil checks keep
	// typed-nil concretes out of the interface fields.
	var semanticIndex retrieval.SemanticIndex
	if idx, err := retrieval.NewWeaviateIndex(cfg.Retrieval); err != nil {
		slog.Error("Failed to initialize semantic index", "error", err)
		os.Exit(1)
	} else if idx != nil {
		semanticIndex = idx
		slog.Info("Semantic index initialized", "host", cfg.Retrieval.WeaviateHost)
	}

	var (
		webSearcher  retrieval.WebSearcher
		newsSearcher retrieval.NewsSearcher
	)
	if ws := retrieval.NewHTTPWebSearcher(cfg.Retrieval); ws != nil {
		webSearcher = ws
		newsSearcher = ws
		slog.Info("Web search initialized", "url", cfg.Retrieval.WebSearchURL)
	}

	var marketData retrieval.MarketData
	if md := retrieval.NewHTTPMarketData(cfg.Retrieval); md != nil {
		marketData = md
		slog.Info("Market data initialized", "url", cfg.Retrieval.MarketDataURL)
	}

	// 5a. Report retention loop
	retention := cleanup.NewService(cfg.Retention, reportService)
	retention.Start(ctx)
	defer retention.Stop()

	// 6. Sessions
	sessions := session.NewManager(cfg.Session.TTL)
	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sessions.StartSweeper(sweepCtx, cfg.Session.SweepInterval)

	// 7. Pipeline stages
	guard := guardrail.New(llmClient)
	rt := router.New(cfg, router.NewLLMClassifier(llmClient))
	interviewStage := interview.New(cfg, llmClient, profileService)
	retrievalStage := retrieval.NewStage(llmClient, productService, semanticIndex, webSearcher, marketData)
	debateEngine := debate.New(cfg, llmClient, newsSearcher, marketData)
	synthesisStage := synthesis.New(llmClient, semanticIndex, reportService)

	orch := orchestrator.New(cfg, sessions, guard, rt,
		interviewStage, retrievalStage, debateEngine, synthesisStage, profileService)

	// 8. HTTP server
	httpServer := api.NewServer(cfg, orch, dbClient, profileService, reportService)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + httpPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("FinAgent started successfully")

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: stop accepting requests, let in-flight
	// turns drain, then stop the sweeper.
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	stopSweeper()

	slog.Info("Shutdown complete")
}
