package internal

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/talentflow/internal/apperr"
	"github.com/starford/talentflow/internal/fixtures"
	"github.com/starford/talentflow/internal/mcpserver"
	"github.com/starford/talentflow/internal/mutation"
	"github.com/starford/talentflow/internal/pipeline"
	"github.com/starford/talentflow/internal/remote"
	"github.com/starford/talentflow/internal/storage"
	"github.com/starford/talentflow/internal/store"
)

func fixtureRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// seed imports the fixture files, generating and writing them first when
// they do not exist yet.
func seed(ctx context.Context, db *store.DB, files storage.Provider, cfg SeedConfig, force bool, logger *slog.Logger) error {
	var set fixtures.Set
	if fixtures.Digest(files) == "" {
		set = fixtures.Generate(fixtureRand(cfg.RandomSeed), cfg.Jobs, cfg.Candidates)
		if err := fixtures.Write(files, set); err != nil {
			return err
		}
		logger.Info("fixtures generated",
			slog.Int("jobs", len(set.Jobs)), slog.Int("candidates", len(set.Candidates)))
	} else {
		var err error
		if set, err = fixtures.Load(files); err != nil {
			return err
		}
	}

	imported, err := fixtures.Seed(ctx, db, set, force)
	if err != nil {
		return err
	}
	if !imported {
		logger.Info("database already seeded, skipping import")
		return nil
	}
	logger.Info("fixtures imported",
		slog.Int("jobs", len(set.Jobs)), slog.Int("candidates", len(set.Candidates)))
	return nil
}

// Seed imports the fixtures into the configured database.
func Seed(ctx context.Context, opts ...Option) error {
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

	files, err := storage.NewFS(cfg.Fixtures.Path)
	if err != nil {
		return fmt.Errorf("init fixtures storage: %w", err)
	}
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	return seed(ctx, db, files, cfg.Seed, app.force, logger)
}

// GenerateFixtures writes fresh jobs.json and candidates.json files sized by
// the seed configuration, replacing existing ones.
func GenerateFixtures(_ context.Context, opts ...Option) error {
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

	files, err := storage.NewFS(cfg.Fixtures.Path)
	if err != nil {
		return fmt.Errorf("init fixtures storage: %w", err)
	}
	set := fixtures.Generate(fixtureRand(cfg.Seed.RandomSeed), cfg.Seed.Jobs, cfg.Seed.Candidates)
	if err := fixtures.Write(files, set); err != nil {
		return err
	}
	logger.Info("fixtures written",
		slog.String("path", cfg.Fixtures.Path),
		slog.Int("jobs", len(set.Jobs)),
		slog.Int("candidates", len(set.Candidates)))
	return nil
}

// notifyLog reports settled mutations, so a rolled-back write is never silent.
func notifyLog(logger *slog.Logger) mutation.NotifierFunc {
	return func(n mutation.Notification) {
		if n.Outcome == mutation.RolledBack {
			logger.Warn("change reverted",
				slog.String("op", n.Op),
				slog.String("kind", apperr.Kind(n.Err)))
		}
	}
}

// ServeMCP runs the MCP tool server on stdio. The client talks to the HTTP
// API at client.remote_url when set and follows its change stream; otherwise
// it uses the local database through the configured fault injection.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger, closeLog, err := app.logger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	uploads, err := storage.NewFS(cfg.Uploads.Path)
	if err != nil {
		return fmt.Errorf("init uploads storage: %w", err)
	}

	var (
		backend remote.Store
		events  remote.EventSource
	)
	if cfg.Client.RemoteURL != "" {
		h := remote.NewHTTP(cfg.Client.RemoteURL, nil)
		backend, events = h, h
	} else {
		db, err := store.Open(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("init store: %w", err)
		}
		defer db.Close()
		backend = remote.WithFaults(db, injector(cfg.Faults))
	}

	client := pipeline.New(backend,
		pipeline.WithSettleDelay(cfg.Client.SettleDelay),
		pipeline.WithLogger(logger),
		pipeline.WithNotifier(notifyLog(logger)))

	logger.Info("MCP server starting", slog.String("remote", cfg.Client.RemoteURL))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	if events != nil {
		g.Go(func() error {
			if err := client.Follow(gCtx, events); err != nil {
				logger.Warn("change stream ended", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		defer client.Wait()
		return mcpserver.New(client, uploads).ServeStdio()
	})
	return g.Wait()
}
