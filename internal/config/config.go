package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects the generation provider and paces calls to it.
type LLMConfig struct {
	Provider            string `yaml:"provider" mapstructure:"provider"`
	UnavailableWaitSecs int    `yaml:"unavailable_wait_secs" mapstructure:"unavailable_wait_secs"`
	BatchPauseSecs      int    `yaml:"batch_pause_secs" mapstructure:"batch_pause_secs"`
	RequestsPerMinute   int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// GeminiConfig holds Gemini API settings. BackupKey is swapped in once per
// analysis when the primary key's daily quota is exhausted.
type GeminiConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BackupKey     string  `yaml:"backup_key" mapstructure:"backup_key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Model         string  `yaml:"model" mapstructure:"model"`
	FallbackModel string  `yaml:"fallback_model" mapstructure:"fallback_model"`
	Temperature   float32 `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BackupKey     string `yaml:"backup_key" mapstructure:"backup_key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Model         string `yaml:"model" mapstructure:"model"`
	FallbackModel string `yaml:"fallback_model" mapstructure:"fallback_model"`
	MaxTokens     int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ExtractConfig bounds what is sent to and kept from each extraction call.
type ExtractConfig struct {
	MaxChars      int `yaml:"max_chars" mapstructure:"max_chars"`
	CharsPerToken int `yaml:"chars_per_token" mapstructure:"chars_per_token"`
	BatchTokens   int `yaml:"batch_tokens" mapstructure:"batch_tokens"`
	MaxRecords    int `yaml:"max_records" mapstructure:"max_records"`
}

// AggregateConfig bounds the consolidated result.
type AggregateConfig struct {
	MaxTransactions   int `yaml:"max_transactions" mapstructure:"max_transactions"`
	MaxCandidates     int `yaml:"max_candidates" mapstructure:"max_candidates"`
	VerifiedThreshold int `yaml:"verified_threshold" mapstructure:"verified_threshold"`
}

// CacheConfig configures the analysis cache. RedisAddr enables the shared tier.
type CacheConfig struct {
	Capacity  int    `yaml:"capacity" mapstructure:"capacity"`
	TTLHours  int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
}

// StorageConfig selects where workbooks are downloaded from.
type StorageConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	LocalRoot         string  `yaml:"local_root" mapstructure:"local_root"`
	TenantID          string  `yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID          string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret      string  `yaml:"client_secret" mapstructure:"client_secret"`
	DriveID           string  `yaml:"drive_id" mapstructure:"drive_id"`
	GraphURL          string  `yaml:"graph_url" mapstructure:"graph_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxMB             int     `yaml:"max_mb" mapstructure:"max_mb"`
}

// StoreConfig configures the run history backend. Driver "none" disables it.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// BatchConfig configures the batch command.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP adapter.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.unavailable_wait_secs", 5)
	v.SetDefault("llm.batch_pause_secs", 10)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.backup_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.fallback_model", "gemini-2.5-flash-lite")
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.backup_key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.fallback_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("extract.max_chars", 3_200_000)
	v.SetDefault("extract.chars_per_token", 4)
	v.SetDefault("extract.batch_tokens", 200_000)
	v.SetDefault("extract.max_records", 10)
	v.SetDefault("aggregate.max_transactions", 20)
	v.SetDefault("aggregate.max_candidates", 20)
	v.SetDefault("aggregate.verified_threshold", 70)
	v.SetDefault("cache.capacity", 100)
	v.SetDefault("cache.ttl_hours", 48)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("storage.provider", "graph")
	v.SetDefault("storage.local_root", ".")
	v.SetDefault("storage.tenant_id", "")
	v.SetDefault("storage.client_id", "")
	v.SetDefault("storage.client_secret", "")
	v.SetDefault("storage.drive_id", "")
	v.SetDefault("storage.graph_url", "")
	v.SetDefault("storage.requests_per_second", 4)
	v.SetDefault("storage.max_mb", 100)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "comps.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("batch.concurrency", 2)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings the given command mode depends on and
// reports every problem at once. Modes: "analyze", "batch", "serve", "runs".
func (c *Config) Validate(mode string) error {
	var errs []string
	switch mode {
	case "runs":
		if c.Store.Driver == "none" {
			errs = append(errs, "store.driver is none; run history is disabled")
		}
	case "analyze", "batch", "serve":
		errs = append(errs, c.validateLLM()...)
		errs = append(errs, c.validateStorage()...)
		if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
			errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
		if mode == "batch" && c.Batch.Concurrency <= 0 {
			errs = append(errs, "batch.concurrency must be positive")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store.driver %q", c.Store.Driver))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateLLM() []string {
	switch c.LLM.Provider {
	case "gemini":
		if c.Gemini.Key == "" {
			return []string{"gemini.key is required"}
		}
	case "anthropic":
		if c.Anthropic.Key == "" {
			return []string{"anthropic.key is required"}
		}
	default:
		return []string{fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider)}
	}
	return nil
}

func (c *Config) validateStorage() []string {
	switch c.Storage.Provider {
	case "graph":
		var errs []string
		for _, f := range []struct{ name, val string }{
			{"storage.tenant_id", c.Storage.TenantID},
			{"storage.client_id", c.Storage.ClientID},
			{"storage.client_secret", c.Storage.ClientSecret},
			{"storage.drive_id", c.Storage.DriveID},
		} {
			if f.val == "" {
				errs = append(errs, f.name+" is required")
			}
		}
		return errs
	case "local":
		if c.Storage.LocalRoot == "" {
			return []string{"storage.local_root is required"}
		}
		return nil
	default:
		return []string{fmt.Sprintf("unknown storage.provider %q", c.Storage.Provider)}
	}
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
