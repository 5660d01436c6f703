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
	"github.com/spf13/cobra"

	"github.com/ashureev/glossgame/internal/api"
	"github.com/ashureev/glossgame/internal/catalog"
	"github.com/ashureev/glossgame/internal/game"
	"github.com/ashureev/glossgame/internal/identity"
	"github.com/ashureev/glossgame/internal/middleware"
	"github.com/ashureev/glossgame/internal/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	slog.Info("Starting server", "port", cfg.Port, "driver", cfg.DBDriver, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := openRepository(cfg)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	slog.Info("Database connected")

	cat := catalog.New(repo)
	if err := seedContent(context.Background(), cat, cfg.ContentPath); err != nil {
		return err
	}

	engine := game.NewEngine(repo, cat, game.Options{
		Policy:           cfg.Game.Scoring,
		DefaultQuestions: cfg.Game.DefaultQuestions,
		MaxQuestions:     cfg.Game.MaxQuestions,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public routes.
	api.NewHealthHandler(repo).RegisterHealth(r)

	// Game routes need a caller identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))
		api.NewSessionHandler(engine, cat).RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweepDone := sweeper.Start(ctx, repo, cfg.Sweeper.IdleTTL, cfg.Sweeper.Interval)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for shutdown signal.
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		stop()
		<-sweepDone
		return fmt.Errorf("server failed: %w", err)
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	<-sweepDone

	slog.Info("Server stopped successfully")
	return nil
}

func seedContent(ctx context.Context, cat *catalog.Catalog, path string) error {
	content, err := catalog.LoadContent(path)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	if err := cat.Seed(ctx, content); err != nil {
		return err
	}
	slog.Info("Glossary content loaded", "topics", len(content.Topics), "questions", len(content.Questions), "source", contentSource(path))
	return nil
}

func contentSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
