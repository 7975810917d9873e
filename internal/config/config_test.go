package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 4096, cfg.LLM.MaxOutputTokens)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 4000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 400, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.Equal(t, 30, cfg.Pipeline.SummaryContextLimit)
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL())
	assert.Equal(t, "legalbrief.db", cfg.Store.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "legalbrief", cfg.Tracing.ServiceName)
	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
llm:
  provider: gemini
  model: gemini-1.5-pro
pipeline:
  chunk_size: 2000
  concurrency: 4
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-1.5-pro", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Defaults still apply for unset values
	assert.Equal(t, 400, cfg.Pipeline.ChunkOverlap)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server:\n  port: 9000\n"), 0644))

	t.Setenv("LEGALBRIEF_SERVER_PORT", "3000")
	t.Setenv("LEGALBRIEF_CACHE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.Equal(t, "sk-test", cfg.LLM.AnthropicAPIKey)
}

func TestLoadPrefixedKeyWins(t *testing.T) {
	chdirTemp(t)
	t.Setenv("LEGALBRIEF_LLM_GEMINI_API_KEY", "prefixed")
	t.Setenv("GEMINI_API_KEY", "plain")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.LLM.GeminiAPIKey)
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.LLM = LLMConfig{Provider: "anthropic", Temperature: 0.2, MaxOutputTokens: 4096, TimeoutSecs: 90}
	cfg.Pipeline = PipelineConfig{ChunkSize: 4000, ChunkOverlap: 400, Concurrency: 1}
	cfg.Store.Path = "legalbrief.db"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults serve", "serve", func(*Config) {}, ""},
		{"analyze without store", "analyze", func(c *Config) { c.Store.Path = "" }, ""},
		{"store needs path", "store", func(c *Config) { c.Store.Path = "" }, "store.path is required"},
		{"bad port", "serve", func(c *Config) { c.Server.Port = 0 }, "server.port must be > 0"},
		{"bad provider", "analyze", func(c *Config) { c.LLM.Provider = "openai" }, "llm.provider"},
		{"overlap too large", "analyze", func(c *Config) { c.Pipeline.ChunkOverlap = 4000 }, "chunk_overlap"},
		{"concurrency bounds", "serve", func(c *Config) { c.Pipeline.Concurrency = 17 }, "concurrency must be between 1 and 16"},
		{"temperature", "analyze", func(c *Config) { c.LLM.Temperature = 1.5 }, "llm.temperature"},
		{"unknown mode", "bogus", func(*Config) {}, "unknown mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validDefaults()
			tc.mutate(cfg)
			err := cfg.Validate(tc.mode)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
