// Wellness planner API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/wellness-planner/internal/agent"
	"github.com/ashureev/wellness-planner/internal/api"
	"github.com/ashureev/wellness-planner/internal/config"
	"github.com/ashureev/wellness-planner/internal/coordinator"
	"github.com/ashureev/wellness-planner/internal/identity"
	"github.com/ashureev/wellness-planner/internal/middleware"
	"github.com/ashureev/wellness-planner/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"store", cfg.Store.Driver, "engine", cfg.Engine.Provider)

	// Agent definitions are validated before anything else is opened.
	registry, err := agent.LoadDefinitions(cfg.AgentsFile)
	if err != nil {
		return fmt.Errorf("load agent definitions: %w", err)
	}
	slog.Info("Agent definitions loaded", "agents", registry.Names(), "primary", registry.Primary().Name)

	repo, err := store.Open(store.Options{
		Driver:     cfg.Store.Driver,
		SQLitePath: cfg.Store.DBPath,
		BadgerPath: cfg.Store.BadgerPath,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()
	if err := repo.Ping(ctx); err != nil {
		return fmt.Errorf("store health check: %w", err)
	}
	slog.Info("Store connected")

	engine, err := agent.NewEngine(ctx, cfg.AgentEngine(), logger)
	if err != nil {
		return fmt.Errorf("create reasoning engine: %w", err)
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			slog.Warn("Failed to close reasoning engine", "error", closeErr)
		}
	}()
	slog.Info("Reasoning engine ready", "engine", engine.Name())

	conversationLogger, err := agent.NewConversationLogger(cfg.ConversationLogger(), logger)
	if err != nil {
		return fmt.Errorf("initialize conversation logger: %w", err)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Warn("Failed to close conversation logger", "error", closeErr)
		}
	}()

	coord := coordinator.New(repo, registry, engine, coordinator.Config{
		MaxSteps:         cfg.Engine.MaxSteps,
		EngineTimeout:    cfg.Engine.Timeout,
		FailureThreshold: cfg.Engine.FailureThreshold,
		HistoryWindow:    cfg.Engine.HistoryWindow,
		SaveRetries:      cfg.SaveRetries,
	}, coordinator.WithLogger(logger), coordinator.WithConversationLogger(conversationLogger))

	tokens := identity.NewTokenStore(cfg.AuthTokenTTL)
	limiter := api.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	handler := api.NewHandler(coord, repo, tokens, limiter, logger)
	handler.SetAllowedOrigins(middleware.OriginHosts(cfg.FrontendURL))

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(middleware.AllowedOrigins(cfg.FrontendURL)))
	handler.RegisterRoutes(r)

	// WebSocket turns can outlast a write deadline, so none is set.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		coord.RunRetryLoop(gctx, 5*time.Second)
		return nil
	})
	g.Go(func() error {
		tokens.RunSweeper(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		limiter.RunEviction(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()

	// Flush anything the retry loop did not get to before the store closes.
	if n := coord.Pending(); n > 0 {
		saved, retryErr := coord.RetryPending(context.Background())
		slog.Info("Final pending session flush", "pending", n, "saved", saved, "error", retryErr)
	}
	return err
}
