package engine

import (
    "strings"
    "testing"
    "time"

    "fleetassign/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testEngine() *Engine { return NewAt(DefaultConfig(), testNow) }

func daysOut(n int) *time.Time {
    t := testNow.Add(time.Duration(n) * 24 * time.Hour)
    return &t
}

func baseDriver() model.Driver {
    return model.Driver{
        ID: "drv1", Name: "Ana", Status: model.StatusAvailable, Active: true,
        LicenseExpiry: daysOut(365), LicenseCategories: []string{"B1"},
        PrimaryFleetID: "f1",
    }
}

func baseVehicle() model.Vehicle {
    return model.Vehicle{ID: "veh1", FleetIDs: []string{"f1"}}
}

func hasMsg(list []string, substr string) bool {
    for _, m := range list {
        if strings.Contains(m, substr) { return true }
    }
    return false
}

func TestFactorsAndScoreBounds(t *testing.T) {
    e := testEngine()
    drivers := []model.Driver{
        baseDriver(),
        {ID: "d2", Status: model.StatusAbsent, Active: true, PrimaryFleetID: "f9"},
        {ID: "d3", Status: model.StatusInRoute, Active: true, LicenseExpiry: daysOut(-10), PrimaryFleetID: "f1",
            Skills: []model.SkillAssignment{{SkillID: "a", Active: true, Expiry: daysOut(-1)}, {SkillID: "b", Active: true, Expiry: daysOut(-2)}}},
        {ID: "d4", Status: model.StatusCompleted, Active: true, LicenseExpiry: daysOut(2), PrimaryFleetID: "f2",
            SecondaryFleetIDs: []string{"f1"}},
    }
    veh := baseVehicle()
    veh.RequiredLicense = "C2"
    for _, strat := range []string{StrategyBalanced, StrategySkillsFirst, StrategyAvailability, StrategyFleetMatch, StrategyWorkload} {
        for _, d := range drivers {
            s := e.Evaluate(d, veh, []string{"a", "b", "c"}, 4, strat)
            for name, f := range map[string]int{
                "skills": s.Factors.SkillsMatch, "availability": s.Factors.Availability,
                "license": s.Factors.LicenseValid, "fleet": s.Factors.FleetMatch,
                "workload": s.Factors.Workload, "score": s.Score,
            } {
                if f < 0 || f > 100 {
                    t.Fatalf("driver %s strategy %s: %s=%d out of range", d.ID, strat, name, f)
                }
            }
        }
    }
}

func TestExpiredLicense(t *testing.T) {
    e := testEngine()
    d := baseDriver()
    d.LicenseExpiry = daysOut(-1)
    for _, strat := range []string{StrategyBalanced, StrategySkillsFirst, StrategyWorkload} {
        s := e.Evaluate(d, baseVehicle(), nil, 0, strat)
        if s.Factors.LicenseValid != 0 {
            t.Fatalf("strategy %s: licenseValid=%d, want 0", strat, s.Factors.LicenseValid)
        }
        if !hasMsg(s.Errors, "license expired") {
            t.Fatalf("strategy %s: missing license expired error: %v", strat, s.Errors)
        }
    }
}

func TestMissingLicenseExpiry(t *testing.T) {
    e := testEngine()
    d := baseDriver()
    d.LicenseExpiry = nil
    s := e.Evaluate(d, baseVehicle(), nil, 0, StrategyBalanced)
    if s.Factors.LicenseValid != 0 || !hasMsg(s.Errors, "no license expiry date") {
        t.Fatalf("want licenseValid=0 with missing-expiry error, got %d %v", s.Factors.LicenseValid, s.Errors)
    }
}

func TestNearExpiryWithPartialSkills(t *testing.T) {
    // License expires in 10 days (window 30), required {a,b}, driver holds a.
    e := testEngine()
    d := baseDriver()
    d.LicenseExpiry = daysOut(10)
    d.Skills = []model.SkillAssignment{{SkillID: "a", Active: true, Expiry: daysOut(90)}}
    s := e.Evaluate(d, baseVehicle(), []string{"a", "b"}, 0, StrategyBalanced)
    if s.Factors.LicenseValid != 33 {
        t.Fatalf("licenseValid=%d, want 33", s.Factors.LicenseValid)
    }
    if s.Factors.SkillsMatch != 50 {
        t.Fatalf("skillsMatch=%d, want 50", s.Factors.SkillsMatch)
    }
    if !hasMsg(s.Warnings, "license expires in 10 days") {
        t.Fatalf("missing license warning: %v", s.Warnings)
    }
    if !hasMsg(s.Warnings, "skill coverage 1/2") {
        t.Fatalf("missing skills warning: %v", s.Warnings)
    }
    if len(s.Errors) != 0 {
        t.Fatalf("unexpected errors: %v", s.Errors)
    }
}

func TestAbsentDriverExcluded(t *testing.T) {
    e := testEngine()
    d := baseDriver()
    d.Status = model.StatusAbsent
    for _, strat := range []string{StrategyBalanced, StrategyAvailability, StrategyFleetMatch} {
        s := e.Evaluate(d, baseVehicle(), nil, 0, strat)
        if s.Factors.Availability != 0 || !hasMsg(s.Errors, "driver is absent") {
            t.Fatalf("strategy %s: availability=%d errors=%v", strat, s.Factors.Availability, s.Errors)
        }
        r := Rank([]model.AssignmentScore{s}, 5, false)
        if len(r.Ranked) != 0 {
            t.Fatalf("strategy %s: absent driver made the primary ranking", strat)
        }
    }
}

func TestAvailabilityStatuses(t *testing.T) {
    e := testEngine()
    cases := []struct {
        status  string
        factor  int
        err     bool
        warning bool
    }{
        {model.StatusAvailable, 100, false, false},
        {model.StatusCompleted, 50, false, false},
        {model.StatusAssigned, 50, false, true},
        {model.StatusInRoute, 50, false, true},
        {model.StatusOnPause, 50, false, true},
        {model.StatusUnavailable, 0, true, false},
        {model.StatusAbsent, 0, true, false},
    }
    for _, tc := range cases {
        d := baseDriver()
        d.Status = tc.status
        s := e.Evaluate(d, baseVehicle(), nil, 0, StrategyBalanced)
        if s.Factors.Availability != tc.factor {
            t.Fatalf("%s: availability=%d, want %d", tc.status, s.Factors.Availability, tc.factor)
        }
        if tc.err != (len(s.Errors) > 0) {
            t.Fatalf("%s: errors=%v", tc.status, s.Errors)
        }
        if tc.warning && !hasMsg(s.Warnings, "driver status") {
            t.Fatalf("%s: missing status warning: %v", tc.status, s.Warnings)
        }
    }
}

func TestLicenseCategoryPenalty(t *testing.T) {
    // C2 required, driver holds B1 only: 100 -> 50, warning, no error.
    e := testEngine()
    d := baseDriver()
    veh := baseVehicle()
    veh.RequiredLicense = "C2"
    s := e.Evaluate(d, veh, nil, 0, StrategyBalanced)
    if s.Factors.LicenseValid != 50 {
        t.Fatalf("licenseValid=%d, want 50", s.Factors.LicenseValid)
    }
    if !hasMsg(s.Warnings, "missing required license category C2") {
        t.Fatalf("missing category warning: %v", s.Warnings)
    }
    if len(s.Errors) != 0 {
        t.Fatalf("category mismatch must not be an error: %v", s.Errors)
    }
}

func TestCategoryPenaltyStacksOnExpiredLicense(t *testing.T) {
    e := testEngine()
    d := baseDriver()
    d.LicenseExpiry = daysOut(-5)
    veh := baseVehicle()
    veh.RequiredLicense = "C2"
    s := e.Evaluate(d, veh, nil, 0, StrategyBalanced)
    if s.Factors.LicenseValid != 0 {
        t.Fatalf("licenseValid=%d, want floor at 0", s.Factors.LicenseValid)
    }
}

func TestEmptyRequiredSkills(t *testing.T) {
    e := testEngine()
    for _, d := range []model.Driver{baseDriver(), {ID: "x", Status: model.StatusAbsent, Active: true}} {
        s := e.Evaluate(d, baseVehicle(), nil, 0, StrategyBalanced)
        if s.Factors.SkillsMatch != 100 {
            t.Fatalf("driver %s: skillsMatch=%d, want 100", d.ID, s.Factors.SkillsMatch)
        }
    }
}

func TestExpiredSkillPenalty(t *testing.T) {
    e := testEngine()
    d := baseDriver()
    d.Skills = []model.SkillAssignment{
        {SkillID: "a", Active: true, Expiry: daysOut(-3)},
        {SkillID: "b", Active: true, Expiry: daysOut(30)},
    }
    s := e.Evaluate(d, baseVehicle(), []string{"a", "b"}, 0, StrategyBalanced)
    // Expired skills still count toward coverage, then subtract 20 each.
    if s.Factors.SkillsMatch != 80 {
        t.Fatalf("skillsMatch=%d, want 80", s.Factors.SkillsMatch)
    }
    if !hasMsg(s.Warnings, "skill a expired") {
        t.Fatalf("missing expired-skill warning: %v", s.Warnings)
    }
}

func TestInactiveSkillDoesNotCount(t *testing.T) {
    e := testEngine()
    d := baseDriver()
    d.Skills = []model.SkillAssignment{{SkillID: "a", Active: false}}
    s := e.Evaluate(d, baseVehicle(), []string{"a"}, 0, StrategyBalanced)
    if s.Factors.SkillsMatch != 0 {
        t.Fatalf("skillsMatch=%d, want 0", s.Factors.SkillsMatch)
    }
}

func TestMandatorySkillCoverage(t *testing.T) {
    cfg := DefaultConfig()
    cfg.RequireSkillCoverage = true
    e := NewAt(cfg, testNow)
    d := baseDriver()
    s := e.Evaluate(d, baseVehicle(), []string{"a"}, 0, StrategyBalanced)
    if !hasMsg(s.Errors, "no required skill coverage") {
        t.Fatalf("expected coverage error, got %v", s.Errors)
    }
}

func TestFleetFactors(t *testing.T) {
    e := testEngine()
    veh := model.Vehicle{ID: "v", FleetIDs: []string{"f1", "f2"}}
    cases := []struct {
        name    string
        driver  model.Driver
        factor  int
        warning string
    }{
        {"primary", model.Driver{ID: "a", Active: true, Status: model.StatusAvailable, LicenseExpiry: daysOut(200), PrimaryFleetID: "f1"}, 100, ""},
        {"secondary", model.Driver{ID: "b", Active: true, Status: model.StatusAvailable, LicenseExpiry: daysOut(200), PrimaryFleetID: "f9", SecondaryFleetIDs: []string{"f2"}}, 75, "driver from secondary fleet"},
        {"foreign", model.Driver{ID: "c", Active: true, Status: model.StatusAvailable, LicenseExpiry: daysOut(200), PrimaryFleetID: "f9"}, 25, "driver from different fleet"},
    }
    for _, tc := range cases {
        s := e.Evaluate(tc.driver, veh, nil, 0, StrategyBalanced)
        if s.Factors.FleetMatch != tc.factor {
            t.Fatalf("%s: fleetMatch=%d, want %d", tc.name, s.Factors.FleetMatch, tc.factor)
        }
        if tc.warning != "" && !hasMsg(s.Warnings, tc.warning) {
            t.Fatalf("%s: missing warning %q in %v", tc.name, tc.warning, s.Warnings)
        }
    }
}

func TestWorkloadFactor(t *testing.T) {
    e := testEngine()
    cases := []struct{ tentative, want int }{{0, 100}, {1, 70}, {2, 40}, {3, 10}, {4, 0}, {10, 0}}
    for _, tc := range cases {
        if got := e.workloadFactor(tc.tentative); got != tc.want {
            t.Fatalf("tentative=%d: workload=%d, want %d", tc.tentative, got, tc.want)
        }
    }
}
