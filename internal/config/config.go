// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Parser  ParserConfig  `mapstructure:"parser"`
	Logger  LoggerConfig  `mapstructure:"logger"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ParserConfig governs the crawl itself.
type ParserConfig struct {
	Root           string            `mapstructure:"root"`
	RPSLimit       float64           `mapstructure:"rps_limit"`
	ResultsPath    string            `mapstructure:"results_path"`
	Headers        map[string]string `mapstructure:"headers"`
	UserAgent      string            `mapstructure:"user_agent"`
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	Category       string            `mapstructure:"category"`
}

// LoggerConfig controls where and how much the crawler logs.
type LoggerConfig struct {
	Path        string `mapstructure:"path"`
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// StorageConfig selects the blob store the CSV sink writes to.
type StorageConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig enables the optional Postgres record export.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for the completion notice.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig enables the Prometheus listener when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Storage providers.
const (
	ProviderLocal = "local"
	ProviderGCS   = "gcs"
)

// Load builds a Config from defaults, an optional file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AutomaticEnv only sees keys viper already knows about, so every
	// key gets a default even when it is empty.
	v.SetDefault("parser.root", "")
	v.SetDefault("parser.rps_limit", 5)
	v.SetDefault("parser.results_path", "results")
	v.SetDefault("parser.headers", map[string]string{})
	v.SetDefault("parser.user_agent", "catalog-crawler/1.0")
	v.SetDefault("parser.timeout_seconds", 15)
	v.SetDefault("parser.category", "")
	v.SetDefault("logger.path", "resources/logs")
	v.SetDefault("logger.level", "debug")
	v.SetDefault("logger.development", false)
	v.SetDefault("storage.provider", ProviderLocal)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "products")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Parser.Root == "" {
		return fmt.Errorf("parser.root is required")
	}
	root, err := url.Parse(c.Parser.Root)
	if err != nil || (root.Scheme != "http" && root.Scheme != "https") || root.Host == "" {
		return fmt.Errorf("parser.root must be an absolute http(s) url, got %q", c.Parser.Root)
	}
	if c.Parser.RPSLimit < 0 {
		return fmt.Errorf("parser.rps_limit must be >= 0")
	}
	if c.Parser.TimeoutSeconds <= 0 {
		return fmt.Errorf("parser.timeout_seconds must be > 0")
	}
	switch c.Storage.Provider {
	case ProviderLocal:
		if c.Parser.ResultsPath == "" {
			return fmt.Errorf("parser.results_path is required for local storage")
		}
	case ProviderGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.provider is gcs")
		}
	default:
		return fmt.Errorf("storage.provider must be %q or %q, got %q", ProviderLocal, ProviderGCS, c.Storage.Provider)
	}
	if c.DB.DSN != "" && c.DB.Table == "" {
		return fmt.Errorf("db.table must be set when db.dsn is set")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// RequestTimeout converts the per-request timeout to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Parser.TimeoutSeconds) * time.Second
}
