package engine

import (
    "testing"

    "fleetassign/internal/model"
)

func TestSuggestRanksFleetPool(t *testing.T) {
    e := testEngine()
    veh := baseVehicle()
    strong := baseDriver()
    strong.ID = "strong"
    strong.Skills = []model.SkillAssignment{{SkillID: "hazmat", Active: true, Expiry: daysOut(120)}}
    weak := baseDriver()
    weak.ID = "weak"
    weak.Status = model.StatusCompleted
    outsider := baseDriver()
    outsider.ID = "outsider"
    outsider.PrimaryFleetID = "f9"
    drivers := []model.Driver{weak, strong, outsider}
    orders := []model.Order{{ID: "o1", RequiredSkills: []string{"hazmat"}}}

    resp := e.Suggest(veh, drivers, orders, "", 0)
    if resp.Strategy != StrategyBalanced {
        t.Fatalf("strategy=%s", resp.Strategy)
    }
    if resp.TotalCandidates != 2 {
        t.Fatalf("totalCandidates=%d, want 2 (outsider filtered)", resp.TotalCandidates)
    }
    if resp.Returned != 2 || len(resp.Suggestions) != 2 {
        t.Fatalf("returned=%d suggestions=%d", resp.Returned, len(resp.Suggestions))
    }
    if resp.Suggestions[0].DriverID != "strong" {
        t.Fatalf("top suggestion %s, want strong", resp.Suggestions[0].DriverID)
    }
    if len(resp.RequiredSkills) != 1 || resp.RequiredSkills[0] != "hazmat" {
        t.Fatalf("requiredSkills=%v", resp.RequiredSkills)
    }
    // Single-suggestion path has no batch context.
    for _, s := range resp.Suggestions {
        if s.Factors.Workload != 100 {
            t.Fatalf("driver %s: workload=%d, want 100", s.DriverID, s.Factors.Workload)
        }
    }
}

func TestSuggestHonorsLimit(t *testing.T) {
    e := testEngine()
    veh := baseVehicle()
    var drivers []model.Driver
    for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
        d := baseDriver()
        d.ID = id
        drivers = append(drivers, d)
    }
    resp := e.Suggest(veh, drivers, nil, StrategyBalanced, 3)
    if len(resp.Suggestions) != 3 || resp.Returned != 3 || resp.TotalCandidates != 7 {
        t.Fatalf("suggestions=%d returned=%d total=%d", len(resp.Suggestions), resp.Returned, resp.TotalCandidates)
    }
}

func TestSuggestBestEffortFallback(t *testing.T) {
    e := testEngine()
    veh := baseVehicle()
    d1 := baseDriver()
    d1.ID = "absent"
    d1.Status = model.StatusAbsent
    d2 := baseDriver()
    d2.ID = "nolicense"
    d2.LicenseExpiry = nil
    resp := e.Suggest(veh, []model.Driver{d1, d2}, nil, StrategyBalanced, 5)
    if !resp.Fallback {
        t.Fatalf("expected best-effort fallback")
    }
    if len(resp.Suggestions) != 1 || len(resp.Suggestions[0].Errors) == 0 {
        t.Fatalf("fallback must carry its errors: %+v", resp.Suggestions)
    }
}

func TestSuggestNoCandidates(t *testing.T) {
    e := testEngine()
    resp := e.Suggest(baseVehicle(), nil, nil, StrategyBalanced, 5)
    if resp.TotalCandidates != 0 || len(resp.Suggestions) != 0 || resp.Fallback {
        t.Fatalf("unexpected response: %+v", resp)
    }
}
