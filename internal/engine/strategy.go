package engine

import (
	"errors"
	"math"
	"strings"

	"fleetassign/internal/model"
)

// Optimization strategies. Each maps to a weight tuple over the five factors;
// weighting orders candidates but never filters them.
const (
	StrategyBalanced     = "BALANCED"
	StrategySkillsFirst  = "SKILLS_FIRST"
	StrategyAvailability = "AVAILABILITY"
	StrategyFleetMatch   = "FLEET_MATCH"
	StrategyWorkload     = "WORKLOAD"
)

// Weights are the relative factor weights for one strategy. License is kept at
// 3 or above in every named strategy; it is a near-hard constraint.
type Weights struct {
	Skills       int `yaml:"skills"`
	Availability int `yaml:"availability"`
	License      int `yaml:"license"`
	Fleet        int `yaml:"fleet"`
	Workload     int `yaml:"workload"`
}

var strategyWeights = map[string]Weights{
	StrategyBalanced:     {Skills: 1, Availability: 1, License: 1, Fleet: 1, Workload: 1},
	StrategySkillsFirst:  {Skills: 5, Availability: 2, License: 3, Fleet: 1, Workload: 1},
	StrategyAvailability: {Skills: 2, Availability: 5, License: 3, Fleet: 1, Workload: 1},
	StrategyFleetMatch:   {Skills: 2, Availability: 2, License: 3, Fleet: 5, Workload: 1},
	StrategyWorkload:     {Skills: 2, Availability: 2, License: 3, Fleet: 1, Workload: 5},
}

// NormalizeStrategy maps free-form input to a canonical strategy name,
// defaulting to BALANCED.
func NormalizeStrategy(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return StrategyBalanced
	}
	return s
}

// KnownStrategy reports whether name resolves to a built-in strategy.
func KnownStrategy(name string) bool {
	_, ok := strategyWeights[NormalizeStrategy(name)]
	return ok
}

// weightsFor resolves the active weight tuple, preferring config overrides.
// Unknown strategies fall back to BALANCED.
func (e *Engine) weightsFor(strategy string) Weights {
	name := NormalizeStrategy(strategy)
	if w, ok := e.cfg.StrategyWeights[name]; ok {
		return w
	}
	if w, ok := strategyWeights[name]; ok {
		return w
	}
	return strategyWeights[StrategyBalanced]
}

// Combine computes the weighted average of the five factors, rounded to the
// nearest integer and clamped to [0,100].
func (w Weights) Combine(f model.AssignmentFactors) int {
	total := w.Skills + w.Availability + w.License + w.Fleet + w.Workload
	if total == 0 {
		return 0
	}
	sum := f.SkillsMatch*w.Skills +
		f.Availability*w.Availability +
		f.LicenseValid*w.License +
		f.FleetMatch*w.Fleet +
		f.Workload*w.Workload
	return clamp(int(math.Round(float64(sum) / float64(total))))
}

func (w Weights) validate() error {
	if w.Skills <= 0 || w.Availability <= 0 || w.License <= 0 || w.Fleet <= 0 || w.Workload <= 0 {
		return errors.New("weights must be positive")
	}
	return nil
}

// clamp bounds a factor or score to [0,100].
func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
