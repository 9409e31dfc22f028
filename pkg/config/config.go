// Package config provides configuration loading and validation for the rbmap tooling.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/rbmap/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidMaxNodes  = errors.New("allocator max nodes must not be negative")
	ErrInvalidThreshold = errors.New("allocator hibernation threshold must not be negative")
	ErrInvalidShards    = errors.New("allocator shards must be positive")
	ErrInvalidLogFormat = errors.New("logging format must be text or json")
	ErrInvalidLogLevel  = errors.New("invalid logging level")
	ErrInvalidRatio     = errors.New("observability sample ratio must be within [0, 1]")
)

// Default configuration values.
const (
	defaultShards    = 1
	defaultLogLevel  = "info"
	defaultLogFormat = logFormatText

	logFormatText = "text"
	logFormatJSON = "json"

	envPrefix = "RBMAP"
)

// Config holds all configuration for the rbmap tooling.
type Config struct {
	Allocator     AllocatorConfig     `mapstructure:"allocator"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Script        ScriptConfig        `mapstructure:"script"`
}

// AllocatorConfig bounds the node store of every tree the tools build.
type AllocatorConfig struct {
	MaxNodes             int `mapstructure:"max_nodes"`
	HibernationThreshold int `mapstructure:"hibernation_threshold"`
	Shards               int `mapstructure:"shards"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ObservabilityConfig holds telemetry export settings.
type ObservabilityConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	MetricsAddr  string  `mapstructure:"metrics_addr"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// ScriptConfig controls how operation scripts are read.
type ScriptConfig struct {
	Strict bool `mapstructure:"strict"`
}

// LoadConfig loads configuration from file and environment variables. An
// empty configPath searches rbmap.yaml in the usual places; a missing file
// there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("rbmap")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/rbmap")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("allocator.max_nodes", 0)
	viperCfg.SetDefault("allocator.hibernation_threshold", 0)
	viperCfg.SetDefault("allocator.shards", defaultShards)

	viperCfg.SetDefault("logging.level", defaultLogLevel)
	viperCfg.SetDefault("logging.format", defaultLogFormat)

	viperCfg.SetDefault("observability.otlp_endpoint", "")
	viperCfg.SetDefault("observability.otlp_headers", "")
	viperCfg.SetDefault("observability.otlp_insecure", false)
	viperCfg.SetDefault("observability.metrics_addr", "")
	viperCfg.SetDefault("observability.environment", "")
	viperCfg.SetDefault("observability.sample_ratio", 0.0)

	viperCfg.SetDefault("script.strict", true)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Allocator.MaxNodes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxNodes, config.Allocator.MaxNodes)
	}

	if config.Allocator.HibernationThreshold < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, config.Allocator.HibernationThreshold)
	}

	if config.Allocator.Shards <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShards, config.Allocator.Shards)
	}

	if config.Logging.Format != logFormatText && config.Logging.Format != logFormatJSON {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if _, err := observability.ParseLogLevel(config.Logging.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLogLevel, err)
	}

	if ratio := config.Observability.SampleRatio; ratio < 0 || ratio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidRatio, ratio)
	}

	return nil
}

// ObservabilityConfig converts the loaded settings into an observability
// configuration for the given mode.
func (config *Config) ObservabilityConfig(mode observability.AppMode, version string) observability.Config {
	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = mode
	obsCfg.Version = version
	obsCfg.Environment = config.Observability.Environment
	obsCfg.SampleRatio = config.Observability.SampleRatio
	obsCfg.Collector = observability.Collector{
		Endpoint: config.Observability.OTLPEndpoint,
		Headers:  observability.ParseOTLPHeaders(config.Observability.OTLPHeaders),
		Insecure: config.Observability.OTLPInsecure,
	}
	obsCfg.Logs.JSON = config.Logging.Format == logFormatJSON

	// Validated by LoadConfig.
	obsCfg.Logs.Level, _ = observability.ParseLogLevel(config.Logging.Level)

	return obsCfg
}
