package engine

import "fleetassign/internal/model"

// ReassignInput is the snapshot for one absent-driver request.
type ReassignInput struct {
	AbsentDriver model.Driver
	// Routes currently carrying the absent driver, with their stops.
	Routes []model.Route
	// Vehicles referenced by those routes, by id.
	Vehicles map[string]model.Vehicle
	// Drivers is the tenant's driver pool.
	Drivers []model.Driver
	// Orders referenced by route stops, by id.
	Orders   map[string]model.Order
	PlanRef  string
	Strategy string
	Limit    int
}

// Reassign generates replacement options for an absent driver. It discovers
// the affected routes (those with at least one pending or in-progress stop),
// pools their skill requirements and fleet scope, scores every eligible
// replacement with workload spread over the whole pool, and ranks the result.
//
// Zero affected routes is a valid terminal result, not an error. Unlike the
// suggestion path there is no best-effort fallback: when every candidate
// carries a hard error the response says so explicitly.
func (e *Engine) Reassign(in ReassignInput) model.ReassignmentResponse {
	strategy := NormalizeStrategy(in.Strategy)
	limit := in.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	resp := model.ReassignmentResponse{
		Options:        []model.AssignmentScore{},
		AbsentDriverID: in.AbsentDriver.ID,
		Strategy:       strategy,
		Summary:        []model.RouteSummary{},
	}

	var stopOrders []model.Order
	var fleetIDs []string
	seenFleet := map[string]bool{}
	var poolRequired string
	for _, rt := range in.Routes {
		if in.PlanRef != "" && rt.PlanRef != in.PlanRef {
			continue
		}
		pending, inProgress := 0, 0
		for _, st := range rt.Stops {
			switch st.Status {
			case model.StopPending:
				pending++
			case model.StopInProgress:
				inProgress++
			default:
				continue
			}
			if o, ok := in.Orders[st.OrderID]; ok {
				stopOrders = append(stopOrders, o)
			}
		}
		if pending+inProgress == 0 {
			continue
		}
		resp.AffectedRoutes++
		resp.PendingStops += pending
		resp.InProgressStops += inProgress
		resp.TotalStops += pending + inProgress
		resp.Summary = append(resp.Summary, model.RouteSummary{
			RouteID:         rt.ID,
			VehicleID:       rt.VehicleID,
			PendingStops:    pending,
			InProgressStops: inProgress,
		})
		if v, ok := in.Vehicles[rt.VehicleID]; ok {
			for _, f := range v.FleetIDs {
				if !seenFleet[f] {
					seenFleet[f] = true
					fleetIDs = append(fleetIDs, f)
				}
			}
			if poolRequired == "" {
				poolRequired = v.RequiredLicense
			}
		}
	}

	if resp.AffectedRoutes == 0 {
		resp.Message = "no active routes found for this driver"
		return resp
	}

	// One pooled option list per absent driver: the chosen replacement
	// absorbs every affected route, so each route beyond the first counts
	// as a tentative assignment for the workload factor.
	pool := model.Vehicle{FleetIDs: fleetIDs, RequiredLicense: poolRequired}
	required := RequiredSkills(stopOrders)
	exclude := map[string]bool{in.AbsentDriver.ID: true}
	candidates := CollectCandidates(in.Drivers, fleetIDs, exclude)
	tentative := resp.AffectedRoutes - 1
	scores := make([]model.AssignmentScore, 0, len(candidates))
	for _, d := range candidates {
		scores = append(scores, e.Evaluate(d, pool, required, tentative, strategy))
	}
	ranked := Rank(scores, limit, false)
	resp.Options = ranked.Ranked
	resp.OptionsGenerated = len(ranked.Ranked)
	if len(ranked.Ranked) == 0 {
		resp.Message = "no viable candidates found"
	}
	return resp
}
