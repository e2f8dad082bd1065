// Package internal provides the main application initialization and runtime logic.
package internal

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
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/avhall/notarius/internal/api"
	"github.com/avhall/notarius/internal/library"
	"github.com/avhall/notarius/internal/mcpserver"
	"github.com/avhall/notarius/internal/models"
	"github.com/avhall/notarius/internal/noteindex"
	"github.com/avhall/notarius/internal/registry"
	"github.com/avhall/notarius/internal/scan"
	"github.com/avhall/notarius/internal/search"
	"github.com/avhall/notarius/internal/settings"
	"github.com/avhall/notarius/internal/sse"
	"github.com/avhall/notarius/internal/watch"
)

// engine bundles the constructed core: registry, index, service, store.
type engine struct {
	cfg    *Config
	logger *slog.Logger
	store  *settings.Store
	svc    *library.Service
}

// buildEngine constructs and loads the note engine from configuration:
// settings store, registry with the default root (and its children), extra
// bookmarked folders, and the trash project.
func buildEngine(cfg *Config, logger *slog.Logger) (*engine, error) {
	if err := os.MkdirAll(cfg.Library.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create library root: %w", err)
	}

	store, err := settings.Open(cfg.Settings.Path, cfg.Settings.Container)
	if err != nil {
		return nil, fmt.Errorf("init settings: %w", err)
	}

	scanner := scan.New(logger)
	reg := registry.New(scanner, store, cfg.Library.SingleFile, logger)
	index := noteindex.New()
	svc := library.NewService(reg, index, scanner, store, logger)

	if _, err := svc.RegisterRoot(cfg.Library.Root, true); err != nil {
		store.Close()
		return nil, fmt.Errorf("register root: %w", err)
	}
	for _, folder := range cfg.Library.Folders {
		if _, err := svc.RegisterRoot(folder, false); err != nil {
			logger.Warn("skipping folder", slog.String("path", folder), slog.String("error", err.Error()))
		}
	}

	if def := reg.Default(); def != nil && !cfg.Library.SingleFile {
		trash, err := reg.EnsureTrash(def.URL)
		if err != nil {
			logger.Warn("trash unavailable", slog.String("error", err.Error()))
		} else {
			svc.LoadProject(trash, false)
		}
	}

	logger.Info("library loaded",
		slog.Int("projects", reg.Len()),
		slog.Int("notes", index.Len()))

	return &engine{cfg: cfg, logger: logger, store: store, svc: svc}, nil
}

func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func searchConfig(cfg *Config) search.Config {
	return search.Config{
		Debounce:         cfg.Search.Debounce(),
		InteractiveLimit: cfg.Search.InteractiveLimit,
		SortKey:          cfg.Search.Key(),
		SortOrder:        cfg.Search.Order(),
	}
}

// Run starts the HTTP server, watcher, and SSE broker with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg)
	logger.Info("configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("library_root", cfg.Library.Root),
		slog.String("settings_path", cfg.Settings.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.store.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	orch := search.NewOrchestrator(eng.svc.Index(), eng.svc.Registry(), searchConfig(cfg), func(notes []*models.Note) {
		paths := make([]string, len(notes))
		for i, n := range notes {
			paths[i] = n.URL
		}
		broker.PublishResults(paths)
	}, logger)
	defer orch.Close()

	apiRouter := api.NewRouter(eng.svc, orch, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// File watcher: keep the index current and the published result fresh.
	g.Go(func() error {
		return watch.Watch(gCtx, eng.svc, logger, func(kind, path string) {
			broker.PublishIndexEvent(kind, path)
			orch.Refresh()
		})
	})

	g.Go(func() error {
		logger.Info("starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("context cancelled, initiating shutdown")
		}

		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("server stopped successfully")
	return nil
}

// RunMCP serves the engine over MCP stdio instead of HTTP.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	// Logs go to stderr: stdout belongs to the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.store.Close()

	orch := search.NewOrchestrator(eng.svc.Index(), eng.svc.Registry(), searchConfig(cfg), nil, logger)
	defer orch.Close()

	srv := mcpserver.New(eng.svc, orch)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
