// Package container wires the expense workflow: it opens the database,
// builds adapters and services in dependency order and tears them down in
// reverse.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
type Config struct {
	Database   DatabaseConfig
	Auth       AuthConfig
	FX         FXConfig
	Storage    StorageConfig
	OpenAI     OpenAIConfig
	Lark       LarkConfig
	Server     ServerConfig
	Worker     WorkerConfig
	Dispatcher DispatcherConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig holds token and password hashing settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration

	// BcryptCost of zero uses bcrypt.DefaultCost
	BcryptCost int
}

// FXConfig holds currency rate lookup settings.
type FXConfig struct {
	BaseURL string
	Timeout time.Duration

	// CachePath is the bbolt file holding daily rates. Empty disables caching.
	CachePath string
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ReceiptDir is the base directory for uploaded receipts
	ReceiptDir string
}

// OpenAIConfig holds settings for the advisory expense review.
type OpenAIConfig struct {
	// APIKey enables the review worker when set
	APIKey string

	Model   string
	BaseURL string

	// PromptsPath overrides the embedded prompt file
	PromptsPath string
}

// LarkConfig holds Lark notification settings.
type LarkConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	ChatID    string
	BaseURL   string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	ReviewPollInterval time.Duration
	ReviewBatchSize    int
	ReviewTimeout      time.Duration
}

// DispatcherConfig holds event dispatch settings.
type DispatcherConfig struct {
	// HandlerTimeout bounds each async handler. Zero means no bound.
	HandlerTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/expenses.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		FX: FXConfig{
			BaseURL:   "https://open.er-api.com/v6/latest",
			Timeout:   5 * time.Second,
			CachePath: "data/fx_rates.db",
		},
		Storage: StorageConfig{
			ReceiptDir: "data/receipts",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
		Worker: WorkerConfig{
			ReviewPollInterval: 30 * time.Second,
			ReviewBatchSize:    10,
			ReviewTimeout:      60 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			HandlerTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}

	if c.Storage.ReceiptDir == "" {
		return fmt.Errorf("storage.receipt_dir is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
		if c.Lark.ChatID == "" {
			return fmt.Errorf("lark.chat_id is required when lark is enabled")
		}
	}

	return nil
}
