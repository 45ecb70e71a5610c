package engine

import (
    "testing"

    "fleetassign/internal/model"
)

func absentDriver() model.Driver {
    d := baseDriver()
    d.ID = "absent"
    d.Status = model.StatusAbsent
    return d
}

func activeRoute(id, vehicleID string, pending, inProgress, done int) model.Route {
    rt := model.Route{ID: id, VehicleID: vehicleID, DriverID: "absent", Status: "in_progress"}
    seq := 0
    add := func(n int, status string) {
        for i := 0; i < n; i++ {
            seq++
            rt.Stops = append(rt.Stops, model.Stop{ID: id + "-s" + string(rune('0'+seq)), Seq: seq, Status: status})
        }
    }
    add(pending, model.StopPending)
    add(inProgress, model.StopInProgress)
    add(done, model.StopCompleted)
    return rt
}

func TestReassignNoActiveRoutes(t *testing.T) {
    e := testEngine()
    in := ReassignInput{
        AbsentDriver: absentDriver(),
        Routes: []model.Route{
            activeRoute("r1", "veh1", 0, 0, 3),
        },
        Vehicles: map[string]model.Vehicle{"veh1": baseVehicle()},
        Drivers:  []model.Driver{baseDriver()},
    }
    resp := e.Reassign(in)
    if resp.AffectedRoutes != 0 || len(resp.Options) != 0 {
        t.Fatalf("affected=%d options=%d", resp.AffectedRoutes, len(resp.Options))
    }
    if resp.Message != "no active routes found for this driver" {
        t.Fatalf("message=%q", resp.Message)
    }
}

func TestReassignSummaryAndCounts(t *testing.T) {
    e := testEngine()
    in := ReassignInput{
        AbsentDriver: absentDriver(),
        Routes: []model.Route{
            activeRoute("r1", "veh1", 2, 1, 1),
            activeRoute("r2", "veh1", 3, 0, 0),
            activeRoute("r3", "veh1", 0, 0, 2), // fully terminal, not affected
        },
        Vehicles: map[string]model.Vehicle{"veh1": baseVehicle()},
        Drivers:  []model.Driver{baseDriver()},
    }
    resp := e.Reassign(in)
    if resp.AffectedRoutes != 2 {
        t.Fatalf("affectedRoutes=%d, want 2", resp.AffectedRoutes)
    }
    if resp.PendingStops != 5 || resp.InProgressStops != 1 || resp.TotalStops != 6 {
        t.Fatalf("pending=%d inProgress=%d total=%d", resp.PendingStops, resp.InProgressStops, resp.TotalStops)
    }
    if len(resp.Summary) != 2 || resp.Summary[0].RouteID != "r1" || resp.Summary[1].RouteID != "r2" {
        t.Fatalf("summary=%+v", resp.Summary)
    }
    if resp.Summary[0].PendingStops != 2 || resp.Summary[0].InProgressStops != 1 {
        t.Fatalf("summary[0]=%+v", resp.Summary[0])
    }
    if resp.OptionsGenerated != 1 || resp.Options[0].DriverID != "drv1" {
        t.Fatalf("options=%+v", resp.Options)
    }
}

func TestReassignPooledWorkload(t *testing.T) {
    // Two affected routes: the replacement absorbs both, so workload sees
    // one tentative assignment beyond the first route.
    e := testEngine()
    in := ReassignInput{
        AbsentDriver: absentDriver(),
        Routes: []model.Route{
            activeRoute("r1", "veh1", 1, 0, 0),
            activeRoute("r2", "veh1", 1, 0, 0),
        },
        Vehicles: map[string]model.Vehicle{"veh1": baseVehicle()},
        Drivers:  []model.Driver{baseDriver()},
    }
    resp := e.Reassign(in)
    if len(resp.Options) != 1 {
        t.Fatalf("options=%d", len(resp.Options))
    }
    if got := resp.Options[0].Factors.Workload; got != 70 {
        t.Fatalf("workload=%d, want 70", got)
    }
}

func TestReassignExcludesAbsentDriver(t *testing.T) {
    e := testEngine()
    ab := absentDriver()
    in := ReassignInput{
        AbsentDriver: ab,
        Routes:       []model.Route{activeRoute("r1", "veh1", 1, 0, 0)},
        Vehicles:     map[string]model.Vehicle{"veh1": baseVehicle()},
        Drivers:      []model.Driver{ab, baseDriver()},
    }
    resp := e.Reassign(in)
    for _, o := range resp.Options {
        if o.DriverID == ab.ID {
            t.Fatalf("absent driver surfaced as its own replacement")
        }
    }
    if len(resp.Options) != 1 {
        t.Fatalf("options=%d, want 1", len(resp.Options))
    }
}

func TestReassignPlanRefFilter(t *testing.T) {
    e := testEngine()
    r1 := activeRoute("r1", "veh1", 2, 0, 0)
    r1.PlanRef = "plan-a"
    r2 := activeRoute("r2", "veh1", 3, 0, 0)
    r2.PlanRef = "plan-b"
    in := ReassignInput{
        AbsentDriver: absentDriver(),
        Routes:       []model.Route{r1, r2},
        Vehicles:     map[string]model.Vehicle{"veh1": baseVehicle()},
        Drivers:      []model.Driver{baseDriver()},
        PlanRef:      "plan-a",
    }
    resp := e.Reassign(in)
    if resp.AffectedRoutes != 1 || resp.PendingStops != 2 {
        t.Fatalf("affected=%d pending=%d", resp.AffectedRoutes, resp.PendingStops)
    }
}

func TestReassignPooledSkills(t *testing.T) {
    e := testEngine()
    r1 := activeRoute("r1", "veh1", 1, 0, 0)
    r1.Stops[0].OrderID = "o1"
    r2 := activeRoute("r2", "veh1", 1, 0, 0)
    r2.Stops[0].OrderID = "o2"
    skilled := baseDriver()
    skilled.ID = "skilled"
    skilled.Skills = []model.SkillAssignment{
        {SkillID: "hazmat", Active: true, Expiry: daysOut(120)},
        {SkillID: "cold_chain", Active: true, Expiry: daysOut(120)},
    }
    half := baseDriver()
    half.ID = "half"
    half.Skills = []model.SkillAssignment{{SkillID: "hazmat", Active: true, Expiry: daysOut(120)}}
    in := ReassignInput{
        AbsentDriver: absentDriver(),
        Routes:       []model.Route{r1, r2},
        Vehicles:     map[string]model.Vehicle{"veh1": baseVehicle()},
        Drivers:      []model.Driver{half, skilled},
        Orders: map[string]model.Order{
            "o1": {ID: "o1", RequiredSkills: []string{"hazmat"}},
            "o2": {ID: "o2", RequiredSkills: []string{"cold_chain"}},
        },
    }
    resp := e.Reassign(in)
    if len(resp.Options) != 2 || resp.Options[0].DriverID != "skilled" {
        t.Fatalf("options=%+v", resp.Options)
    }
    if resp.Options[0].Factors.SkillsMatch != 100 || resp.Options[1].Factors.SkillsMatch != 50 {
        t.Fatalf("skills factors: %d / %d", resp.Options[0].Factors.SkillsMatch, resp.Options[1].Factors.SkillsMatch)
    }
}

func TestReassignNoViableCandidates(t *testing.T) {
    e := testEngine()
    bad := baseDriver()
    bad.ID = "bad"
    bad.Status = model.StatusUnavailable
    in := ReassignInput{
        AbsentDriver: absentDriver(),
        Routes:       []model.Route{activeRoute("r1", "veh1", 1, 0, 0)},
        Vehicles:     map[string]model.Vehicle{"veh1": baseVehicle()},
        Drivers:      []model.Driver{bad},
    }
    resp := e.Reassign(in)
    if len(resp.Options) != 0 || resp.OptionsGenerated != 0 {
        t.Fatalf("options=%+v", resp.Options)
    }
    if resp.Message != "no viable candidates found" {
        t.Fatalf("message=%q", resp.Message)
    }
    if resp.AffectedRoutes != 1 {
        t.Fatalf("affectedRoutes=%d", resp.AffectedRoutes)
    }
}

func TestReassignFleetUnion(t *testing.T) {
    // Routes on vehicles from different fleets widen the candidate pool.
    e := testEngine()
    r1 := activeRoute("r1", "veh1", 1, 0, 0)
    r2 := activeRoute("r2", "veh2", 1, 0, 0)
    other := baseDriver()
    other.ID = "other-fleet"
    other.PrimaryFleetID = "f2"
    in := ReassignInput{
        AbsentDriver: absentDriver(),
        Routes:       []model.Route{r1, r2},
        Vehicles: map[string]model.Vehicle{
            "veh1": baseVehicle(),
            "veh2": {ID: "veh2", FleetIDs: []string{"f2"}},
        },
        Drivers: []model.Driver{other},
    }
    resp := e.Reassign(in)
    if len(resp.Options) != 1 || resp.Options[0].DriverID != "other-fleet" {
        t.Fatalf("options=%+v", resp.Options)
    }
}
