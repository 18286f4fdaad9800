package container

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig(t *testing.T) *Config {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "db", "expenses.db")
	cfg.Database.MaxOpenConns = 1
	cfg.FX.CachePath = filepath.Join(dir, "cache", "fx.db")
	cfg.Storage.ReceiptDir = filepath.Join(dir, "receipts")
	cfg.Auth.JWTSecret = "0123456789abcdef"
	cfg.Auth.BcryptCost = 4
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"no receipts dir", func(c *Config) { c.Storage.ReceiptDir = "" }, "storage.receipt_dir"},
		{"lark without chat", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "cli_a", AppSecret: "s"}
		}, "lark.chat_id"},
		{"lark disabled ignores credentials", func(c *Config) { c.Lark = LarkConfig{AppID: "cli_a"} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewContainer_RejectsBadInput(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Auth.JWTSecret = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()))

	health := c.Health(context.Background())
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.NotNil(t, c.Engine())
	assert.NotNil(t, c.Services().Dashboard)
	assert.Equal(t, 0, c.Workers().Running(), "review worker needs an API key")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	c.HTTPServer().Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	categories, err := c.Services().Category.List(context.Background(), true)
	require.NoError(t, err)
	assert.NotEmpty(t, categories, "migrations seed categories")

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
}

func TestContainer_ReviewWorkerRegisteredWithAPIKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAI.APIKey = "sk-test"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Equal(t, 1, c.Workers().Running())
}

func TestContainer_StartFailureReleasesResources(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OpenAI.PromptsPath = filepath.Join(t.TempDir(), "missing.yaml")

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)

	err = c.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "external clients")
	assert.False(t, c.Ready())

	// the rate cache lock was released, so a second container can open the same files
	cfg.OpenAI = OpenAIConfig{}
	again, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, again.Start(context.Background()))
	require.NoError(t, again.Close())
}

func TestZapLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	adapter := &zapLoggerAdapter{logger: zap.New(core)}

	adapter.Info("Expense created", "expense_id", int64(7), 42, "ignored", "dangling")
	adapter.Error("Transition failed", "error", errors.New("boom"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{"expense_id": int64(7)}, entries[0].ContextMap())
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
