package internal

import (
	"io"

	"github.com/starford/cardsync/internal/reconcile"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	dryRun    bool
	logOutput io.Writer
	noteStore reconcile.Store
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithDryRun makes syncs report what they would do without contacting
// the store or editing files.
func WithDryRun(dryRun bool) Option {
	return func(a *application) {
		a.dryRun = dryRun
	}
}

// WithLogOutput redirects log output, stderr by default.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithNoteStore replaces the AnkiConnect client built from the config.
func WithNoteStore(s reconcile.Store) Option {
	return func(a *application) {
		a.noteStore = s
	}
}
