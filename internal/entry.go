// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/readmore/internal/api"
	"github.com/starford/readmore/internal/index"
	"github.com/starford/readmore/internal/mcpserver"
	"github.com/starford/readmore/internal/postservice"
	"github.com/starford/readmore/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("content_path", cfg.Content.Path),
		slog.String("base_url", cfg.Site.BaseURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := index.Open(cfg.SQLite.Path, cfg.IndexOptions()...)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	var store storage.Provider
	if cfg.Content.Enabled() {
		store, err = openContent(cfg.Content.Path)
		if err != nil {
			return err
		}
		// Initial sync.
		if _, err := index.Sync(ctx, db, store, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	svc := postservice.New(db, cfg.ServiceConfig(), logger)
	handler := newHTTPHandler(svc, cfg)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if store != nil && cfg.Content.Watch {
		g.Go(func() error {
			err := index.Watch(gCtx, db, store, cfg.Content.Path, logger, func(ev index.Event) {
				logger.Debug("content change applied",
					slog.String("kind", ev.Kind),
					slog.String("path", ev.Path),
					slog.String("marker", ev.Delta.String()))
			})
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func newHTTPHandler(svc *postservice.Service, cfg *Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)

	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token))
	return r
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// RunImport syncs the content directory into the database once.
func RunImport(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config
	if !cfg.Content.Enabled() {
		return fmt.Errorf("import: content.path is not configured")
	}
	logger := newLogger(app.logOut, cfg.App.LogLevel)

	db, err := index.Open(cfg.SQLite.Path, cfg.IndexOptions()...)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	store, err := openContent(cfg.Content.Path)
	if err != nil {
		return err
	}
	stats, err := index.Sync(ctx, db, store, logger)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	_, err = fmt.Fprintf(app.out, "imported %d, removed %d, unchanged %d, failed %d\n",
		stats.Imported, stats.Removed, stats.Skipped, stats.Failed)
	return err
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(app.logOut, cfg.App.LogLevel)

	db, err := index.Open(cfg.SQLite.Path, cfg.IndexOptions()...)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	if cfg.Content.Enabled() {
		store, err := openContent(cfg.Content.Path)
		if err != nil {
			return err
		}
		if _, err := index.Sync(ctx, db, store, logger); err != nil {
			logger.Warn("initial sync failed", slog.String("error", err.Error()))
		}
	}

	srv := mcpserver.New(postservice.New(db, cfg.ServiceConfig(), logger))
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

func openContent(path string) (*storage.FS, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	store, err := storage.NewFS(path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}
