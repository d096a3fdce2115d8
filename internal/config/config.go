// Package config provides configuration management for the deviations and
// bias analyzer.
//
// Configuration is loaded from multiple sources in this order:
// 1. Configuration file (YAML)
// 2. Environment variables
// 3. Built-in defaults
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"deviations-analyzer/pkg/errors"
	"deviations-analyzer/pkg/validator"
)

// Config represents the complete application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig contains application-level configuration.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// LoggingConfig contains structured-logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// MetricsConfig controls the optional Prometheus exporter used to observe
// the analyzer CLI from the outside. It is never consulted by the pure
// analysis pipeline itself (see internal/core/services/deviations), only by
// the cmd/analyze wrapper, so it cannot affect findings or their ordering.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// AnalyzerConfig carries the tunable detection thresholds described in the
// external interface contract. Every field has a default; Validate rejects
// out-of-range values with a ConfigurationInvalid-class error instead of
// silently clamping them.
type AnalyzerConfig struct {
	DeviationThresholdSigma  float64 `mapstructure:"deviation_threshold_sigma"`
	BiasThresholdD           float64 `mapstructure:"bias_threshold_d"`
	MinGroupSize             int     `mapstructure:"min_group_size"`
	MinNumericCoverage       float64 `mapstructure:"min_numeric_coverage"`
	MinCV                    float64 `mapstructure:"min_cv"`
	MaxGroupCardinality      int     `mapstructure:"max_group_cardinality"`
	OutlierFractionFloor     float64 `mapstructure:"outlier_fraction_floor"`
	IntersectionalMultiplier float64 `mapstructure:"intersectional_multiplier"`
	SevereDisparityRatio     float64 `mapstructure:"severe_disparity_ratio"`
	MinPeriods               int     `mapstructure:"min_periods"`
}

// DefaultAnalyzerConfig returns the configuration defaults named in the
// external interface contract.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		DeviationThresholdSigma:  2.0,
		BiasThresholdD:           0.3,
		MinGroupSize:             10,
		MinNumericCoverage:       0.6,
		MinCV:                    0.02,
		MaxGroupCardinality:      20,
		OutlierFractionFloor:     0.05,
		IntersectionalMultiplier: 1.2,
		SevereDisparityRatio:     4.0,
		MinPeriods:               2,
	}
}

// Validate rejects an AnalyzerConfig whose fields fall outside the ranges
// the detectors assume. Every rule here maps to a ConfigurationInvalid
// failure at the caller boundary (see pkg/errors).
func (ac *AnalyzerConfig) Validate() error {
	v := validator.New()
	v.Min("deviation_threshold_sigma", ac.DeviationThresholdSigma, 0.01)
	v.Min("bias_threshold_d", ac.BiasThresholdD, 0)
	v.Min("min_group_size", ac.MinGroupSize, 1)
	v.Range("min_numeric_coverage", ac.MinNumericCoverage, 0, 1)
	v.Min("min_cv", ac.MinCV, 0)
	v.Min("max_group_cardinality", ac.MaxGroupCardinality, 2)
	v.Range("outlier_fraction_floor", ac.OutlierFractionFloor, 0, 1)
	v.Min("intersectional_multiplier", ac.IntersectionalMultiplier, 1.0)
	v.Min("severe_disparity_ratio", ac.SevereDisparityRatio, 1.0)
	v.Min("min_periods", ac.MinPeriods, 2)

	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// Validate validates the logging configuration.
func (lc *LoggingConfig) Validate() error {
	v := validator.New()
	v.OneOf("logging.level", lc.Level, []string{"debug", "info", "warn", "error"})
	v.OneOf("logging.format", lc.Format, []string{"json", "text"})
	if v.HasErrors() {
		return v.Errors()
	}
	return nil
}

// Validate validates the complete configuration, returning a
// ConfigurationInvalid-class *errors.AppError on failure.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return errors.NewConfigurationInvalidError("logging config validation failed", err)
	}
	if err := c.Analyzer.Validate(); err != nil {
		return errors.NewConfigurationInvalidError("analyzer config validation failed", err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("app.name", "deviations-analyzer")
	viper.SetDefault("app.version", "dev")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.addr", ":9090")

	defaults := DefaultAnalyzerConfig()
	viper.SetDefault("analyzer.deviation_threshold_sigma", defaults.DeviationThresholdSigma)
	viper.SetDefault("analyzer.bias_threshold_d", defaults.BiasThresholdD)
	viper.SetDefault("analyzer.min_group_size", defaults.MinGroupSize)
	viper.SetDefault("analyzer.min_numeric_coverage", defaults.MinNumericCoverage)
	viper.SetDefault("analyzer.min_cv", defaults.MinCV)
	viper.SetDefault("analyzer.max_group_cardinality", defaults.MaxGroupCardinality)
	viper.SetDefault("analyzer.outlier_fraction_floor", defaults.OutlierFractionFloor)
	viper.SetDefault("analyzer.intersectional_multiplier", defaults.IntersectionalMultiplier)
	viper.SetDefault("analyzer.severe_disparity_ratio", defaults.SevereDisparityRatio)
	viper.SetDefault("analyzer.min_periods", defaults.MinPeriods)
}

// Load reads configuration from ./configs/config.yaml (if present), then
// environment variables (ANALYZER_-prefixed, "." replaced with "_"), layered
// over the built-in defaults.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix("ANALYZER")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
