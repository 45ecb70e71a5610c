package engine

import (
    "testing"

    "fleetassign/internal/model"
)

func TestNormalizeStrategy(t *testing.T) {
    cases := map[string]string{
        "":             StrategyBalanced,
        "balanced":     StrategyBalanced,
        " skills_first ": StrategySkillsFirst,
        "WORKLOAD":     StrategyWorkload,
    }
    for in, want := range cases {
        if got := NormalizeStrategy(in); got != want {
            t.Fatalf("NormalizeStrategy(%q)=%q, want %q", in, got, want)
        }
    }
}

func TestStrategyTables(t *testing.T) {
    for name, w := range strategyWeights {
        if err := w.validate(); err != nil {
            t.Fatalf("%s: %v", name, err)
        }
        if name != StrategyBalanced && w.License < 3 {
            t.Fatalf("%s: license weight %d, want >= 3", name, w.License)
        }
    }
    emphasis := map[string]func(Weights) int{
        StrategySkillsFirst:  func(w Weights) int { return w.Skills },
        StrategyAvailability: func(w Weights) int { return w.Availability },
        StrategyFleetMatch:   func(w Weights) int { return w.Fleet },
        StrategyWorkload:     func(w Weights) int { return w.Workload },
    }
    for name, pick := range emphasis {
        if pick(strategyWeights[name]) != 5 {
            t.Fatalf("%s: emphasized weight is %d, want 5", name, pick(strategyWeights[name]))
        }
    }
}

func TestCombineClampedAndRounded(t *testing.T) {
    w := strategyWeights[StrategyBalanced]
    f := model.AssignmentFactors{SkillsMatch: 100, Availability: 100, LicenseValid: 100, FleetMatch: 100, Workload: 100}
    if got := w.Combine(f); got != 100 {
        t.Fatalf("Combine=%d, want 100", got)
    }
    f = model.AssignmentFactors{SkillsMatch: 33, Availability: 33, LicenseValid: 34, FleetMatch: 33, Workload: 33}
    if got := w.Combine(f); got != 33 {
        t.Fatalf("Combine=%d, want 33", got)
    }
}

func TestUnknownStrategyFallsBackToBalanced(t *testing.T) {
    e := testEngine()
    if w := e.weightsFor("NONSENSE"); w != strategyWeights[StrategyBalanced] {
        t.Fatalf("weightsFor fell through: %+v", w)
    }
}
