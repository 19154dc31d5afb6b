package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/cardsync/internal"
	"github.com/starford/cardsync/internal/apperr"
	pkgconfig "github.com/starford/cardsync/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOrDefault(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func newApp(cmd *cli.Command, opts ...internal.Option) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.New(append([]internal.Option{internal.WithConfig(cfg)}, opts...)...)
}

func runSync(ctx context.Context, cmd *cli.Command) error {
	app, err := newApp(cmd, internal.WithDryRun(cmd.Bool("dry-run")))
	if err != nil {
		return err
	}
	defer app.Close()

	reports, err := app.Sync(ctx, cmd.Args().Slice(), cmd.Bool("all"))
	if errors.Is(err, apperr.ErrNoDocument) {
		app.Logger().Info("sync: nothing to do", slog.String("reason", err.Error()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync error: %w", err)
	}

	printSyncReports(os.Stdout, reports)
	for _, r := range reports {
		if r.Err != nil && !errors.Is(r.Err, apperr.ErrNoDocument) {
			return fmt.Errorf("sync failed for %s: %w", r.Path, r.Err)
		}
	}
	return nil
}

func runCards(ctx context.Context, cmd *cli.Command) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	path := cmd.Args().First()
	views, err := app.Cards(ctx, path)
	if err != nil {
		return fmt.Errorf("cards error: %w", err)
	}
	printCards(os.Stdout, path, views)
	return nil
}

func runHistory(_ context.Context, cmd *cli.Command) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	path := cmd.Args().First()
	entries, err := app.History(path, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("history error: %w", err)
	}
	printHistory(os.Stdout, path, entries)
	return nil
}

func runWatch(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "cardsync",
		Usage: "Sync #card headings in Markdown notes with Anki through AnkiConnect",
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
				Name:      "sync",
				Usage:     "Create or update the notes of changed cards",
				ArgsUsage: "[FILE...]",
				Action:    runSync,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Report what would change without contacting Anki or editing files",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Sync every Markdown file in the vault",
					},
				},
			},
			{
				Name:      "cards",
				Usage:     "List the cards of a file and their sync state",
				ArgsUsage: "FILE",
				Action:    runCards,
			},
			{
				Name:      "history",
				Usage:     "Show the sync history of a file",
				ArgsUsage: "FILE",
				Action:    runHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries, 0 for all",
						Value: 20,
					},
				},
			},
			{
				Name:   "watch",
				Usage:  "Watch the vault and sync files as they change",
				Action: runWatch,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
