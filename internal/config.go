package internal

import (
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/cardsync/internal/checksum"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	Anki   AnkiConfig        `yaml:"anki"`
	Sync   SyncConfig        `yaml:"sync"`
	Ledger LedgerConfig      `yaml:"ledger"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Anki.Validate(); err != nil {
		return err
	}
	return c.Sync.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AnkiConfig holds the AnkiConnect endpoint and note defaults.
type AnkiConfig struct {
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`
	DefaultDeck string        `yaml:"default_deck"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Validate validates the AnkiConnect configuration.
func (c *AnkiConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.DefaultDeck, validation.Required),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// SyncConfig holds fingerprint and watcher settings.
type SyncConfig struct {
	Hash     string        `yaml:"hash"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Hash, validation.Required, validation.In(checksum.MD5, checksum.SHA256)),
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// LedgerConfig holds the sync history database. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether sync history is recorded.
func (c *LedgerConfig) Enabled() bool {
	return c.Path != ""
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Anki: AnkiConfig{
			URL:         "http://localhost:8765",
			Model:       "Basic-23794",
			DefaultDeck: "Default",
			Timeout:     10 * time.Second,
		},
		Sync: SyncConfig{
			Hash:     checksum.MD5,
			Debounce: 500 * time.Millisecond,
		},
		Ledger: LedgerConfig{
			Path: "./cardsync.db",
		},
	}
}
