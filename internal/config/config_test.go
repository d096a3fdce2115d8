package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzerConfig_DefaultsAreValid(t *testing.T) {
	cfg := DefaultAnalyzerConfig()
	assert.NoError(t, cfg.Validate())
}

func TestAnalyzerConfig_RejectsOutOfRangeThreshold(t *testing.T) {
	cfg := DefaultAnalyzerConfig()
	cfg.MinNumericCoverage = 1.5

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestAnalyzerConfig_RejectsTooSmallMinPeriods(t *testing.T) {
	cfg := DefaultAnalyzerConfig()
	cfg.MinPeriods = 1

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestAnalyzerConfig_RejectsSubunityIntersectionalMultiplier(t *testing.T) {
	cfg := DefaultAnalyzerConfig()
	cfg.IntersectionalMultiplier = 0.5

	err := cfg.Validate()
	assert.Error(t, err)
}

func TestLoggingConfig_RejectsUnknownLevel(t *testing.T) {
	lc := LoggingConfig{Level: "verbose", Format: "json"}
	assert.Error(t, lc.Validate())
}

func TestLoggingConfig_AcceptsKnownLevelAndFormat(t *testing.T) {
	lc := LoggingConfig{Level: "debug", Format: "text"}
	assert.NoError(t, lc.Validate())
}

func TestConfig_ValidateWrapsFailureAsConfigurationInvalid(t *testing.T) {
	cfg := &Config{
		Logging:  LoggingConfig{Level: "bogus", Format: "json"},
		Analyzer: DefaultAnalyzerConfig(),
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "CONFIGURATION_INVALID")
}
