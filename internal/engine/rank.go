package engine

import (
	"sort"

	"fleetassign/internal/model"
)

// Ranking is the ordered outcome for one vehicle/route set.
type Ranking struct {
	Ranked   []model.AssignmentScore
	Total    int
	Fallback bool
}

// Rank partitions scored candidates into valid (no errors) and invalid,
// orders the valid set by score and truncates to limit. When nothing is valid
// and bestEffort is set, the single highest-scored candidate overall is
// returned with its errors attached so the caller still has something
// actionable; without bestEffort the ranked set is simply empty.
//
// Ties break on the skills factor, then on driver id, so equal inputs always
// rank the same way.
func Rank(scores []model.AssignmentScore, limit int, bestEffort bool) Ranking {
	r := Ranking{Total: len(scores)}
	valid := make([]model.AssignmentScore, 0, len(scores))
	for _, s := range scores {
		if !s.Excluded() {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		if bestEffort && len(scores) > 0 {
			all := sortScores(scores)
			r.Ranked = all[:1]
			r.Fallback = true
		} else {
			r.Ranked = []model.AssignmentScore{}
		}
		return r
	}
	valid = sortScores(valid)
	if limit > 0 && len(valid) > limit {
		valid = valid[:limit]
	}
	r.Ranked = valid
	return r
}

func sortScores(scores []model.AssignmentScore) []model.AssignmentScore {
	out := append([]model.AssignmentScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Factors.SkillsMatch != out[j].Factors.SkillsMatch {
			return out[i].Factors.SkillsMatch > out[j].Factors.SkillsMatch
		}
		return out[i].DriverID < out[j].DriverID
	})
	return out
}
