package engine

import "fleetassign/internal/model"

// Suggest ranks candidate drivers for one vehicle and its route stops.
// drivers is the tenant's driver pool and orders are the resolved stop orders;
// both are read-only snapshots fetched by the caller. Workload has no batch
// context on this path and stays at 100 for every candidate.
//
// When every candidate carries a hard error the best-scored one is still
// returned, annotated with its errors, so the caller always has something
// actionable.
func (e *Engine) Suggest(vehicle model.Vehicle, drivers []model.Driver, orders []model.Order, strategy string, limit int) model.SuggestionResponse {
	strategy = NormalizeStrategy(strategy)
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	required := RequiredSkills(orders)
	candidates := CollectCandidates(drivers, vehicle.FleetIDs, nil)
	scores := make([]model.AssignmentScore, 0, len(candidates))
	for _, d := range candidates {
		scores = append(scores, e.Evaluate(d, vehicle, required, 0, strategy))
	}
	ranked := Rank(scores, limit, true)
	return model.SuggestionResponse{
		Suggestions:     ranked.Ranked,
		VehicleID:       vehicle.ID,
		Strategy:        strategy,
		TotalCandidates: ranked.Total,
		Returned:        len(ranked.Ranked),
		RequiredSkills:  required,
		Fallback:        ranked.Fallback,
	}
}
