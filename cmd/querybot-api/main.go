package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querybot/querybot/internal/api"
	"github.com/querybot/querybot/internal/archive"
	"github.com/querybot/querybot/internal/assistant"
	"github.com/querybot/querybot/internal/auth"
	"github.com/querybot/querybot/internal/config"
	"github.com/querybot/querybot/internal/database"
	"github.com/querybot/querybot/internal/llm"
	"github.com/querybot/querybot/internal/nl2sql"
	"github.com/querybot/querybot/internal/observability"
	s3store "github.com/querybot/querybot/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("querybot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	target, dbOptions := database.FromConfig(cfg.Database)
	conn, err := database.Connect(context.Background(), target, dbOptions)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("target", target.String()), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	model, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize text generation model", slog.String("provider", cfg.LLM.Provider), slog.Any("error", err))
		os.Exit(1)
	}

	deps := assistant.Deps{
		Database: conn,
		Model:    model,
		Prompt: nl2sql.Config{
			Domain:      cfg.Prompt.Domain,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		},
		Logger: logger,
	}
	readiness := []api.ReadinessCheck{conn.HealthCheck}

	var exchanges api.ExchangeLoader
	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.FromConfig(cfg.ObjectStore))
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		exchangeArchive, err := archive.New(objectStore, cfg.Archive.Prefix)
		if err != nil {
			logger.Error("failed to initialize exchange archive", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Archive = exchangeArchive
		exchanges = exchangeArchive
		readiness = append(readiness, objectStore.Ping)
	}

	service, err := assistant.New(deps)
	if err != nil {
		logger.Error("failed to initialize assistant", slog.Any("error", err))
		os.Exit(1)
	}

	apiDeps := api.Dependencies{
		Logger:            logger,
		Assistant:         service,
		Exchanges:         exchanges,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: 2 * time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		if validator.Len() == 0 {
			logger.Warn("auth is required but no static keys are configured")
		}
		apiDeps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, apiDeps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("database", conn.Target().String()),
			slog.String("llm_provider", cfg.LLM.Provider),
			slog.String("llm_model", cfg.LLM.Model),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
