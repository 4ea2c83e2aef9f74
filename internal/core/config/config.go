// Package config provides configuration management for rulekeeper services.
package config

import (
	"time"

	"github.com/solatis/rulekeeper/internal/rules"
)

// Config is the complete process configuration.
type Config struct {
	Server   ServerConfig
	Engine   EngineConfig
	Log      LogConfig
	Database DatabaseConfig
}

// ServerConfig holds configuration for the gRPC evaluation API.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	// MetricsPort serves Prometheus metrics on /metrics. 0 disables it.
	MetricsPort int
}

// EngineConfig holds rule evaluation settings.
type EngineConfig struct {
	EmptyRootPolicy rules.EmptyRootPolicy
	CacheSize       int
	// Attributes become Variant rule types of the product attribute scope.
	Attributes []AttributeConfig
}

// AttributeConfig names one product attribute. Multi-select attributes
// compare the whole selection against the rule value.
type AttributeConfig struct {
	ID          int64  `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	MultiSelect bool   `mapstructure:"multi_select"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string
	Format string
}

// DatabaseConfig locates the rule definition store.
// URL scheme selects the driver: sqlite:// or postgres://.
type DatabaseConfig struct {
	URL string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50051,
			RequestTimeout: 5 * time.Second,
			MetricsPort:    9090,
		},
		Engine: EngineConfig{
			EmptyRootPolicy: rules.EmptyRootIdentity,
			CacheSize:       rules.DefaultCacheSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			URL: "sqlite://./data/rulekeeper.db",
		},
	}
}
