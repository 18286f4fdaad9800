package config

import (
	"github.com/garyjia/expense-workflow/internal/container"
	"github.com/garyjia/expense-workflow/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Auth: container.AuthConfig{
			JWTSecret:  c.Auth.JWTSecret,
			TokenTTL:   c.Auth.TokenTTL,
			BcryptCost: c.Auth.BcryptCost,
		},
		FX: container.FXConfig{
			BaseURL:   c.FX.BaseURL,
			Timeout:   c.FX.Timeout,
			CachePath: c.FX.CachePath,
		},
		Storage: container.StorageConfig{
			ReceiptDir: c.Storage.ReceiptDir,
		},
		OpenAI: container.OpenAIConfig{
			APIKey:      c.OpenAI.APIKey,
			Model:       c.OpenAI.Model,
			BaseURL:     c.OpenAI.BaseURL,
			PromptsPath: c.OpenAI.PromptsPath,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			ChatID:    c.Lark.ChatID,
			BaseURL:   c.Lark.BaseURL,
		},
		Server: container.ServerConfig{
			Host:           c.Server.Host,
			Port:           c.Server.Port,
			ReadTimeout:    c.Server.ReadTimeout,
			WriteTimeout:   c.Server.WriteTimeout,
			MaxUploadBytes: c.Server.MaxUploadBytes,
		},
		Worker: container.WorkerConfig{
			ReviewPollInterval: c.Worker.ReviewPollInterval,
			ReviewBatchSize:    c.Worker.ReviewBatchSize,
			ReviewTimeout:      c.Worker.ReviewTimeout,
		},
		Dispatcher: container.DispatcherConfig{
			HandlerTimeout: c.Dispatcher.HandlerTimeout,
		},
	}
}

// ToLoggerConfig returns the settings for utils.NewLogger
func (c *Config) ToLoggerConfig(service string) utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
		Service:    service,
	}
}
