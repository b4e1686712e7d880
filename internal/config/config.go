package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"ymlfeed/exporter/internal/sink"
)

var (
	ErrMissingFeedURL    = errors.New("feed.url is required")
	ErrInvalidFeedURL    = errors.New("feed.url must be an absolute http(s) URL")
	ErrMissingOutputPath = errors.New("output.path is required")
	ErrInvalidFormat     = errors.New("output.format must be 'csv' or 'xlsx'")
	ErrInvalidTimeout    = errors.New("feed.timeout must be at least 1 second")
	ErrConditionalNeeds  = errors.New("feed.conditional requires redis.enabled")
)

// Config holds all configuration for the application
type Config struct {
	Feed     FeedConfig     `mapstructure:"feed"`
	Output   OutputConfig   `mapstructure:"output"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// FeedConfig holds the byte source settings
type FeedConfig struct {
	URL                  string   `mapstructure:"url"`
	Timeout              int      `mapstructure:"timeout"`
	MaxRetries           int      `mapstructure:"max_retries"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	UserAgent            string   `mapstructure:"user_agent"`
	Proxies              []string `mapstructure:"proxies"`
	Conditional          bool     `mapstructure:"conditional"`
}

// OutputConfig holds the row sink settings
type OutputConfig struct {
	Path            string `mapstructure:"path"`
	Format          string `mapstructure:"format"`
	Delimiter       string `mapstructure:"delimiter"`
	CollectPictures bool   `mapstructure:"collect_pictures"`
	StripHTML       bool   `mapstructure:"strip_html"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RedisConfig holds Redis connection details for feed state and export events
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	Database     int    `mapstructure:"database"`
	StreamPrefix string `mapstructure:"stream_prefix"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
}

// DatabaseConfig holds the offer mirror connection
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
	Listen   string `mapstructure:"listen"`
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"url":              "feed.url",
	"output":           "output.path",
	"format":           "output.format",
	"delimiter":        "output.delimiter",
	"timeout":          "feed.timeout",
	"collect-pictures": "output.collect_pictures",
	"strip-html":       "output.strip_html",
	"log-level":        "logging.level",
}

// Load reads configuration from an optional YAML file, a .env file, the
// environment and the given flags, in increasing priority. An explicit path
// must exist; the default ./config.yaml may be absent.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	// .env only fills variables that are not already set.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case path == "" && errors.As(err, &notFound):
		case path != "" && errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config file %s not found", path)
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the settings every run needs.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return ErrMissingFeedURL
	}
	u, err := url.Parse(c.Feed.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidFeedURL
	}
	if c.Feed.Timeout < 1 {
		return ErrInvalidTimeout
	}
	if c.Feed.Conditional && !c.Redis.Enabled {
		return ErrConditionalNeeds
	}

	if c.Output.Path == "" {
		return ErrMissingOutputPath
	}
	switch strings.ToLower(c.Output.Format) {
	case "", sink.FormatCSV, sink.FormatXLSX:
	default:
		return ErrInvalidFormat
	}
	if _, err := sink.ParseDelimiter(c.Output.Delimiter); err != nil {
		return fmt.Errorf("output.delimiter: %w", err)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.url", "")
	v.SetDefault("feed.timeout", 60)
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("feed.max_requests_per_second", 1)
	v.SetDefault("feed.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("feed.proxies", []string{})
	v.SetDefault("feed.conditional", false)

	v.SetDefault("output.path", "items.csv")
	v.SetDefault("output.format", "")
	v.SetDefault("output.delimiter", ";")
	v.SetDefault("output.collect_pictures", false)
	v.SetDefault("output.strip_html", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.stream_prefix", "ymlexport:stream:")
	v.SetDefault("redis.stream_max_len", 10000)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "ymlexport")
	v.SetDefault("database.user", "ymlexport")
	v.SetDefault("database.password", "")

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.listen", "")
}
