package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm" mapstructure:"llm"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Tracing  TracingConfig  `yaml:"tracing" mapstructure:"tracing"`
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"`
	Model           string  `yaml:"model" mapstructure:"model"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string  `yaml:"gemini_api_key" mapstructure:"gemini_api_key"`
	Temperature     float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout is the per-request wait for one completion.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// PipelineConfig configures chunking and chunk fan-out.
type PipelineConfig struct {
	ChunkSize           int `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap        int `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	Concurrency         int `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerMinute   int `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	SummaryContextLimit int `yaml:"summary_context_limit" mapstructure:"summary_context_limit"`
}

// CacheConfig configures the Redis response cache. An empty RedisURL
// disables caching.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// StoreConfig configures the SQLite analysis store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig configures OTLP trace export. An empty Endpoint disables it.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint" mapstructure:"endpoint"`
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEGALBRIEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.anthropic_api_key", "LEGALBRIEF_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind anthropic key")
	}
	if err := v.BindEnv("llm.gemini_api_key", "LEGALBRIEF_LLM_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind gemini key")
	}

	// Defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_output_tokens", 4096)
	v.SetDefault("llm.timeout_secs", 90)
	v.SetDefault("pipeline.chunk_size", 4000)
	v.SetDefault("pipeline.chunk_overlap", 400)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.requests_per_minute", 0)
	v.SetDefault("pipeline.summary_context_limit", 30)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("cache.prefix", "legalbrief:llm:")
	v.SetDefault("store.path", "legalbrief.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "legalbrief")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "analyze", "serve":
		problems = append(problems, c.validateLLM()...)
		problems = append(problems, c.validatePipeline()...)
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if strings.TrimSpace(c.Store.Path) == "" && mode != "analyze" {
		problems = append(problems, "store.path is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateLLM() []string {
	var problems []string
	switch c.LLM.Provider {
	case "anthropic", "gemini":
	default:
		problems = append(problems, fmt.Sprintf("llm.provider must be anthropic or gemini, got %q", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		problems = append(problems, "llm.temperature must be between 0 and 1")
	}
	if c.LLM.MaxOutputTokens <= 0 {
		problems = append(problems, "llm.max_output_tokens must be > 0")
	}
	if c.LLM.TimeoutSecs <= 0 {
		problems = append(problems, "llm.timeout_secs must be > 0")
	}
	return problems
}

func (c *Config) validatePipeline() []string {
	var problems []string
	if c.Pipeline.ChunkSize < 200 {
		problems = append(problems, "pipeline.chunk_size must be >= 200")
	}
	if c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		problems = append(problems, "pipeline.chunk_overlap must be >= 0 and smaller than chunk_size")
	}
	if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 16 {
		problems = append(problems, "pipeline.concurrency must be between 1 and 16")
	}
	if c.Pipeline.RequestsPerMinute < 0 {
		problems = append(problems, "pipeline.requests_per_minute must be >= 0")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
