// Package config loads runtime settings from defaults, an optional YAML
// file, and environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	DatabaseURL string `mapstructure:"database_url"`

	NATS       NATSConfig       `mapstructure:"nats"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Trigger    TriggerConfig    `mapstructure:"trigger"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
}

type NATSConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

type OpenAIConfig struct {
	APIKey        string  `mapstructure:"api_key"`
	BaseURL       string  `mapstructure:"base_url"`
	PrimaryModel  string  `mapstructure:"primary_model"`
	FallbackModel string  `mapstructure:"fallback_model"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Temperature   float64 `mapstructure:"temperature"`
}

type TriggerConfig struct {
	MessageThreshold int `mapstructure:"message_threshold"`
}

type QueueConfig struct {
	BatchSize         int           `mapstructure:"batch_size"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	RetentionDays     int           `mapstructure:"retention_days"`
}

type ExtractionConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	FallbackConfidence  float64 `mapstructure:"fallback_confidence"`
}

type AnalyticsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Load reads configuration: built-in defaults, then the optional file at
// path, then environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", 8760)
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.token", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.primary_model", "gpt-4o")
	v.SetDefault("openai.fallback_model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1024)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("trigger.message_threshold", 3)
	v.SetDefault("queue.batch_size", 10)
	v.SetDefault("queue.poll_interval", 30*time.Second)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.base_delay", time.Second)
	v.SetDefault("queue.backoff_multiplier", 2.0)
	v.SetDefault("queue.retention_days", 30)
	v.SetDefault("extraction.confidence_threshold", 0.5)
	v.SetDefault("extraction.fallback_confidence", 0.4)
	v.SetDefault("analytics.cache_ttl", 5*time.Minute)

	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAI.APIKey = apiKey
	}
	if baseURL := v.GetString("OPENAI_BASE_URL"); baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}
	if natsURL := v.GetString("NATS_URL"); natsURL != "" {
		cfg.NATS.URL = natsURL
	}
	if token := v.GetString("NATS_TOKEN"); token != "" {
		cfg.NATS.Token = token
	}
	return &cfg, nil
}

// Retention converts the configured retention window to a duration.
func (q QueueConfig) Retention() time.Duration {
	return time.Duration(q.RetentionDays) * 24 * time.Hour
}
