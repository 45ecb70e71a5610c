package engine

import "fleetassign/internal/model"

// CollectCandidates returns the drivers eligible to be scored for a set of
// fleets: active drivers whose primary fleet is in the set or who hold a
// secondary membership in it. Drivers named in exclude (e.g. the absent
// driver) are skipped. No ordering is imposed here; ranking orders later.
func CollectCandidates(drivers []model.Driver, fleetIDs []string, exclude map[string]bool) []model.Driver {
	if len(fleetIDs) == 0 {
		return nil
	}
	out := make([]model.Driver, 0, len(drivers))
	for _, d := range drivers {
		if !d.Active {
			continue
		}
		if exclude[d.ID] {
			continue
		}
		for _, f := range fleetIDs {
			if d.InFleet(f) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
