// Package config loads boa CLI configuration from an optional file and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. BOA_USERNAME.
const EnvPrefix = "BOA"

// Config holds all boa CLI configuration.
type Config struct {
	// API endpoint
	Domain     string        `mapstructure:"domain"`
	Path       string        `mapstructure:"path"`
	Timeout    time.Duration `mapstructure:"timeout"`
	DatasetTTL time.Duration `mapstructure:"dataset-ttl"`

	// Credentials
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// Logging
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`

	// Output cache (empty dir disables it)
	CacheDir     string `mapstructure:"cache-dir"`
	CacheMaxSize int64  `mapstructure:"cache-max-size"`

	// Metrics listener (empty disables it)
	MetricsAddr string `mapstructure:"metrics-addr"`

	// S3 output archive
	S3Endpoint  string `mapstructure:"s3-endpoint"`
	S3Bucket    string `mapstructure:"s3-bucket"`
	S3AccessKey string `mapstructure:"s3-access-key"`
	S3SecretKey string `mapstructure:"s3-secret-key"`
	S3Region    string `mapstructure:"s3-region"`
	S3Prefix    string `mapstructure:"s3-prefix"`

	// Job history database
	DatabaseURL string `mapstructure:"database-url"`
}

// field: default value
var defaults = map[string]interface{}{
	"domain":         "boa.cs.iastate.edu",
	"path":           "/boa/?q=boa/api",
	"timeout":        "0s",
	"dataset-ttl":    "24h",
	"username":       "",
	"password":       "",
	"log-level":      "info",
	"log-format":     "console",
	"cache-dir":      "",
	"cache-max-size": int64(512 * 1024 * 1024), // 512MB
	"metrics-addr":   "",
	"s3-endpoint":    "http://localhost:9000",
	"s3-bucket":      "boa-outputs",
	"s3-access-key":  "",
	"s3-secret-key":  "",
	"s3-region":      "us-east-1",
	"s3-prefix":      "",
	"database-url":   "",
}

// Load reads configuration from path (skipped when empty) and environment
// variables. Environment variables take precedence over the config file.
func Load(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if cfg.CacheMaxSize < 0 {
		return nil, fmt.Errorf("cache-max-size must not be negative")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must not be negative")
	}

	return &cfg, nil
}

// RequireArchive checks the settings needed to upload job output.
func (c *Config) RequireArchive() error {
	if c.S3Bucket == "" {
		return fmt.Errorf("s3-bucket is required")
	}
	return nil
}

// RequireHistory checks the settings needed to record job history.
func (c *Config) RequireHistory() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database-url is required (set %s_DATABASE_URL)", EnvPrefix)
	}
	return nil
}
