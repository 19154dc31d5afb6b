// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/starford/cardsync/internal/anki"
	"github.com/starford/cardsync/internal/apperr"
	"github.com/starford/cardsync/internal/ledger"
	"github.com/starford/cardsync/internal/markdown"
	"github.com/starford/cardsync/internal/reconcile"
	"github.com/starford/cardsync/internal/storage"
	"github.com/starford/cardsync/internal/syncservice"
	"github.com/starford/cardsync/internal/watcher"
)

// ErrLedgerDisabled is returned by History when no ledger path is configured.
var ErrLedgerDisabled = errors.New("ledger is disabled")

// App wires storage, the note store, the ledger and the sync service.
type App struct {
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	ledger *ledger.DB
	svc    *syncservice.Service
}

// New builds an App from the given options. The caller must Close it.
func New(opts ...Option) (*App, error) {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	out := app.logOutput
	if out == nil {
		out = os.Stderr
	}
	logger := newLogger(cfg.App, out)
	slog.SetDefault(logger)

	logger.Debug("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("anki_url", cfg.Anki.URL),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("hash", cfg.Sync.Hash),
		slog.Bool("dry_run", app.dryRun),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	a := &App{cfg: cfg, logger: logger, store: store}

	// ledgerSvc stays a nil interface when the ledger is disabled.
	var ledgerSvc syncservice.Ledger
	if cfg.Ledger.Enabled() {
		db, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		a.ledger = db
		ledgerSvc = db
	}

	noteStore := app.noteStore
	if noteStore == nil {
		noteStore = anki.NewClient(cfg.Anki.URL, cfg.Anki.Timeout)
	}

	r := reconcile.New(noteStore, markdown.NewRenderer(), reconcile.Options{
		Model:    cfg.Anki.Model,
		HashAlgo: cfg.Sync.Hash,
		DryRun:   app.dryRun,
		Logger:   logger,
	})
	a.svc = syncservice.NewService(store, r, syncservice.Options{
		DefaultDeck: cfg.Anki.DefaultDeck,
		HashAlgo:    cfg.Sync.Hash,
		Ledger:      ledgerSvc,
		Logger:      logger,
	})
	return a, nil
}

// newLogger returns a JSON logger, or a tint console logger for the text
// format with colors only on a terminal.
func newLogger(cfg ApplicationConfig, out io.Writer) *slog.Logger {
	if cfg.LogFormat == LogFormatText {
		noColor := true
		if f, ok := out.(*os.File); ok {
			noColor = !isatty.IsTerminal(f.Fd())
		}
		return slog.New(tint.NewHandler(out, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: time.DateTime,
			NoColor:    noColor,
		}))
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}

// Close releases the ledger.
func (a *App) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Sync syncs the given files, or the whole vault when all is set. Paths may
// be relative to the working directory or to the vault root. With no paths
// and no all flag it returns apperr.ErrNoDocument.
func (a *App) Sync(ctx context.Context, paths []string, all bool) ([]syncservice.FileReport, error) {
	if all {
		return a.svc.SyncAll(ctx)
	}
	if len(paths) == 0 {
		return nil, apperr.ErrNoDocument
	}

	out := make([]syncservice.FileReport, 0, len(paths))
	for _, p := range paths {
		rel, err := a.resolve(p)
		if err != nil {
			out = append(out, syncservice.FileReport{Path: p, Err: err})
			continue
		}
		report, err := a.svc.Sync(ctx, rel)
		out = append(out, syncservice.FileReport{Path: rel, Report: report, Err: err})
	}
	return out, nil
}

// Cards returns the parsed cards of one file and their sync state.
func (a *App) Cards(ctx context.Context, path string) ([]syncservice.CardView, error) {
	rel, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	return a.svc.Cards(ctx, rel)
}

// History returns the newest ledger entries for one file.
func (a *App) History(path string, limit int) ([]ledger.Entry, error) {
	if a.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	rel, err := a.resolve(path)
	if err != nil {
		return nil, err
	}
	return a.ledger.History(rel, limit)
}

// resolve maps a path that exists relative to the working directory to a
// vault-relative path. Anything else is taken as vault-relative already.
func (a *App) resolve(path string) (string, error) {
	if path == "" {
		return "", apperr.ErrNoDocument
	}
	if _, err := os.Stat(path); err == nil {
		return a.store.Rel(path)
	}
	return path, nil
}

// Watch syncs the whole vault once, then keeps syncing files as they
// change until ctx is cancelled or a shutdown signal arrives.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := a.svc.SyncAll(ctx); err != nil {
		a.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return watcher.Watch(gCtx, a.store.Root(), a.cfg.Sync.Debounce, a.logger, a.syncChanged)
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			a.logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	a.logger.Info("Watcher stopped successfully")
	return nil
}

func (a *App) syncChanged(ctx context.Context, rel string) {
	_, ran, err := a.svc.SyncIfChanged(ctx, rel)
	if err != nil {
		if errors.Is(err, apperr.ErrNoDocument) {
			a.logger.Debug("watch: file vanished before sync", slog.String("path", rel))
			return
		}
		a.logger.Warn("watch: sync failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return
	}
	if !ran {
		a.logger.Debug("watch: skipped unchanged file", slog.String("path", rel))
	}
}

// Run builds the application and watches the vault until ctx is cancelled.
func Run(ctx context.Context, opts ...Option) error {
	app, err := New(opts...)
	if err != nil {
		return err
	}
	defer app.Close()

	app.logger.Info("Watcher starting...",
		slog.String("vault_path", app.store.Root()),
		slog.String("anki_url", app.cfg.Anki.URL))
	return app.Watch(ctx)
}
