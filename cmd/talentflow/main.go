package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/talentflow/internal"
	pkgconfig "github.com/starford/talentflow/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func seed(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Seed(ctx, internal.WithConfig(cfg), internal.WithForce(cmd.Bool("force")))
}

func generate(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("jobs") {
		cfg.Seed.Jobs = int(cmd.Int("jobs"))
	}
	if cmd.IsSet("candidates") {
		cfg.Seed.Candidates = int(cmd.Int("candidates"))
	}
	if cmd.IsSet("seed") {
		cfg.Seed.RandomSeed = cmd.Uint("seed")
	}
	if err := cfg.Seed.Validate(); err != nil {
		return fmt.Errorf("invalid fixture size: %w", err)
	}
	return internal.GenerateFixtures(ctx, internal.WithConfig(cfg))
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if url := cmd.String("remote"); url != "" {
		cfg.Client.RemoteURL = url
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "talentflow",
		Usage:  "Hiring pipeline backend: jobs board, candidate kanban and assessments",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the REST API with simulated latency and failures",
				Action: serve,
			},
			{
				Name:   "seed",
				Usage:  "Import the fixture files into the database",
				Action: seed,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "Import even if the database already holds jobs"},
				},
			},
			{
				Name:   "fixtures",
				Usage:  "Generate jobs.json and candidates.json",
				Action: generate,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "jobs", Usage: "Number of jobs"},
					&cli.IntFlag{Name: "candidates", Usage: "Number of candidates"},
					&cli.UintFlag{Name: "seed", Usage: "Random seed for reproducible output"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: mcp,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "remote", Usage: "Base URL of a running API (default: local database)"},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
