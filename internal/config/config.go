// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server (metrics, health, stats).
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// CrawlerConfig governs the worker pool and the per-URL pipeline gates.
type CrawlerConfig struct {
	SeedURLs            []string `mapstructure:"seed_urls"`
	AllowedDomains      []string `mapstructure:"allowed_domains"`
	UserAgent           string   `mapstructure:"user_agent"`
	Workers             int      `mapstructure:"workers"`
	DelaySeconds        float64  `mapstructure:"delay_seconds"`
	MaxFileSizeMB       float64  `mapstructure:"max_file_size_mb"`
	LowInformationWords int      `mapstructure:"low_information_words"`
	SimilarityThreshold float64  `mapstructure:"similarity_threshold"`
	EmptyPollMs         int      `mapstructure:"empty_poll_ms"`
}

// HTTPConfig configures fetch behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// StoreConfig sets where durable crawl state lives.
type StoreConfig struct {
	Dir        string `mapstructure:"dir"`
	ReportPath string `mapstructure:"report_path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Default returns the built-in configuration, the same values Load starts
// from before the file and environment are applied.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are statically known to unmarshal.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load builds a Config from disk/environment.
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
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.user_agent", "campuscrawl/1.0 (+https://github.com/campuscrawl/campuscrawl)")
	v.SetDefault("crawler.workers", 8)
	v.SetDefault("crawler.delay_seconds", 0.5)
	v.SetDefault("crawler.max_file_size_mb", 2.0)
	v.SetDefault("crawler.low_information_words", 100)
	v.SetDefault("crawler.similarity_threshold", 0.9)
	v.SetDefault("crawler.empty_poll_ms", 100)
	v.SetDefault("crawler.allowed_domains", []string{
		"ics.uci.edu",
		"cs.uci.edu",
		"informatics.uci.edu",
		"stat.uci.edu",
	})
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("store.dir", "data/crawl")
	v.SetDefault("store.report_path", "Answer.txt")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.DelaySeconds < 0 {
		return fmt.Errorf("crawler.delay_seconds must be >= 0")
	}
	if c.Crawler.SimilarityThreshold <= 0 || c.Crawler.SimilarityThreshold > 1 {
		return fmt.Errorf("crawler.similarity_threshold must be in (0, 1]")
	}
	if c.Crawler.MaxFileSizeMB <= 0 {
		return fmt.Errorf("crawler.max_file_size_mb must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the ops server is enabled")
	}
	if strings.TrimSpace(c.Store.Dir) == "" {
		return fmt.Errorf("store.dir must be set")
	}
	return nil
}

// DefaultDelay converts the configured minimum politeness delay to a Duration.
func (c Config) DefaultDelay() time.Duration {
	return time.Duration(c.Crawler.DelaySeconds * float64(time.Second))
}

// FetchTimeout converts the HTTP timeout to a Duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// MaxFileSizeBytes converts the configured size ceiling to bytes.
func (c Config) MaxFileSizeBytes() int64 {
	return int64(c.Crawler.MaxFileSizeMB * 1048576)
}

// EmptyPoll returns how long a worker sleeps when the frontier is empty.
func (c Config) EmptyPoll() time.Duration {
	return time.Duration(c.Crawler.EmptyPollMs) * time.Millisecond
}
