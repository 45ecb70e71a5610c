// Package engine implements driver/vehicle assignment scoring and the
// absent-driver reassignment generator. The engine is pure and stateless per
// invocation: callers assemble a snapshot of tenant records and receive scored
// results with no side effects.
package engine

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// Config holds the scoring tunables. Zero values are replaced by defaults so a
// partial YAML file only overrides what it names.
type Config struct {
	// LicenseWindowDays is the near-expiry window for license warnings.
	LicenseWindowDays int `yaml:"licenseWindowDays"`
	// ExpiredSkillPenalty is subtracted from the skills factor per expired
	// skill assignment held by the driver.
	ExpiredSkillPenalty int `yaml:"expiredSkillPenalty"`
	// CategoryPenalty is subtracted from the license factor when the vehicle
	// requires a license category the driver does not hold.
	CategoryPenalty int `yaml:"categoryPenalty"`
	// WorkloadStep is subtracted from the workload factor per route already
	// tentatively assigned to the driver within the current request.
	WorkloadStep int `yaml:"workloadStep"`
	// RequireSkillCoverage turns zero skill coverage into a hard error.
	RequireSkillCoverage bool `yaml:"requireSkillCoverage"`
	// DefaultLimit bounds result lists when the request does not set one.
	DefaultLimit int `yaml:"defaultLimit"`
	// StrategyWeights optionally overrides the built-in weight tables,
	// keyed by strategy name.
	StrategyWeights map[string]Weights `yaml:"strategyWeights,omitempty"`
}

// DefaultConfig returns the built-in tunables.
func DefaultConfig() Config {
	return Config{
		LicenseWindowDays:   30,
		ExpiredSkillPenalty: 20,
		CategoryPenalty:     50,
		WorkloadStep:        30,
		DefaultLimit:        5,
	}
}

// LoadConfig reads a YAML tunables file and overlays it on the defaults.
// An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read engine config: %w", err)
	}
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parse engine config: %w", err)
	}
	if file.LicenseWindowDays > 0 {
		cfg.LicenseWindowDays = file.LicenseWindowDays
	}
	if file.ExpiredSkillPenalty > 0 {
		cfg.ExpiredSkillPenalty = file.ExpiredSkillPenalty
	}
	if file.CategoryPenalty > 0 {
		cfg.CategoryPenalty = file.CategoryPenalty
	}
	if file.WorkloadStep > 0 {
		cfg.WorkloadStep = file.WorkloadStep
	}
	if file.DefaultLimit > 0 {
		cfg.DefaultLimit = file.DefaultLimit
	}
	cfg.RequireSkillCoverage = file.RequireSkillCoverage
	if len(file.StrategyWeights) > 0 {
		cfg.StrategyWeights = map[string]Weights{}
		for k, w := range file.StrategyWeights {
			if err := w.validate(); err != nil {
				return cfg, fmt.Errorf("strategy %s: %w", k, err)
			}
			cfg.StrategyWeights[NormalizeStrategy(k)] = w
		}
	}
	return cfg, nil
}
