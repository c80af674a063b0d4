// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/talentflow/internal/api"
	"github.com/starford/talentflow/internal/faults"
	"github.com/starford/talentflow/internal/fixtures"
	"github.com/starford/talentflow/internal/metrics"
	"github.com/starford/talentflow/internal/remote"
	"github.com/starford/talentflow/internal/sse"
	"github.com/starford/talentflow/internal/storage"
	"github.com/starford/talentflow/internal/store"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger(defaultOut io.Writer) (*slog.Logger, func() error, error) {
	out := a.logOut
	if out == nil {
		out = defaultOut
	}
	logger, closeLog, err := NewLogger(out, a.config.App.LogLevel, a.config.App.LogFile)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closeLog, nil
}

// injector builds the fault injector for cfg, or nil when injection is off.
func injector(cfg FaultsConfig) *faults.Injector {
	if !cfg.Enabled {
		return nil
	}
	seed := cfg.RandomSeed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return faults.New(cfg.Policy(), rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// newHandler assembles the root router: health checks, metrics and the API.
func newHandler(db *store.DB, backend remote.Store, broker *sse.Broker, uploads storage.Provider, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/api", api.NewRouter(backend, broker, broker, uploads))
	return r
}

// Run starts the HTTP API with the given options and blocks until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog, err := app.logger(os.Stdout)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("fixtures_path", cfg.Fixtures.Path),
		slog.Bool("faults_enabled", cfg.Faults.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	fixtureFiles, err := storage.NewFS(cfg.Fixtures.Path)
	if err != nil {
		return fmt.Errorf("init fixtures storage: %w", err)
	}
	uploads, err := storage.NewFS(cfg.Uploads.Path)
	if err != nil {
		return fmt.Errorf("init uploads storage: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	if cfg.Seed.Enabled {
		if err := seed(ctx, db, fixtureFiles, cfg.Seed, false, logger); err != nil {
			logger.Warn("initial seed failed", slog.String("error", err.Error()))
		}
	}

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	backend := remote.WithFaults(db, injector(cfg.Faults))
	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           newHandler(db, backend, broker, uploads, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Fixtures.Watch {
		w := fixtures.NewWatcher(cfg.Fixtures.Path, fixtureFiles, db,
			fixtures.WithLogger(logger),
			fixtures.WithDebounce(cfg.Fixtures.Debounce),
			fixtures.OnImport(func(fixtures.Set) {
				broker.PublishChange(sse.FixturesImported, sse.Change{})
			}))
		g.Go(func() error {
			if err := w.Run(gCtx); err != nil {
				logger.Warn("fixtures watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		// SSE streams only end when their clients go away or the broker closes.
		broker.Close()

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

// errShutdown cancels the group once shutdown begins so background workers stop.
var errShutdown = errors.New("shutdown")
