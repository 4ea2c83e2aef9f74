package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/rulekeeper/internal/core/logging"
	"github.com/solatis/rulekeeper/internal/rules"
)

// EnvPrefix prefixes every environment variable, e.g. RK_SERVER_PORT.
const EnvPrefix = "RK"

// New returns a viper instance with defaults and environment binding set up.
// Commands bind their flags to it before calling Load.
func New() *viper.Viper {
	d := Default()
	v := viper.New()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.metrics_port", d.Server.MetricsPort)
	v.SetDefault("engine.empty_root_policy", d.Engine.EmptyRootPolicy.String())
	v.SetDefault("engine.cache_size", d.Engine.CacheSize)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("database.url", d.Database.URL)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	return Load(New(), configPath)
}

// Load reads configPath (if any) into v and builds the validated Config.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := validateNoSecretsInConfig(configPath); err != nil {
			return nil, err
		}
	}

	policy, err := rules.ParseEmptyRootPolicy(v.GetString("engine.empty_root_policy"))
	if err != nil {
		return nil, fmt.Errorf("engine.empty_root_policy: %w", err)
	}

	var attributes []AttributeConfig
	if err := v.UnmarshalKey("engine.attributes", &attributes); err != nil {
		return nil, fmt.Errorf("engine.attributes: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			MetricsPort:    v.GetInt("server.metrics_port"),
		},
		Engine: EngineConfig{
			EmptyRootPolicy: policy,
			CacheSize:       v.GetInt("engine.cache_size"),
			Attributes:      attributes,
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port ranges, positive timeout and cache size, known
// log settings and a supported database scheme.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be between 0 and 65535, got %d", cfg.Server.MetricsPort)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Engine.CacheSize <= 0 {
		return fmt.Errorf("cache_size must be positive, got %d", cfg.Engine.CacheSize)
	}
	for _, attr := range cfg.Engine.Attributes {
		if attr.ID <= 0 {
			return fmt.Errorf("engine.attributes: id must be positive, got %d (%s)", attr.ID, attr.Name)
		}
	}
	if _, err := logging.GetLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level %q: %w (expected one of %s)", cfg.Log.Level, err, strings.Join(logging.AllLevels, ", "))
	}
	if _, err := logging.GetFormat(cfg.Log.Format); err != nil {
		return fmt.Errorf("log.format %q: %w (expected one of %s)", cfg.Log.Format, err, strings.Join(logging.AllFormats, ", "))
	}
	if !strings.HasPrefix(cfg.Database.URL, "sqlite://") && !strings.HasPrefix(cfg.Database.URL, "postgres://") {
		return fmt.Errorf("database.url must start with sqlite:// or postgres://, got %q", cfg.Database.URL)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only database credentials.
// Only the file itself is inspected; RK_DATABASE_URL may carry a password.
func validateNoSecretsInConfig(configPath string) error {
	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	u, err := url.Parse(file.GetString("database.url"))
	if err != nil || u.User == nil {
		return nil
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return fmt.Errorf("database passwords not allowed in config files (use %s_DATABASE_URL environment variable)", EnvPrefix)
	}
	return nil
}
