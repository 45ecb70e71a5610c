package engine

import (
	"encoding/json"
	"sort"
	"strings"

	"fleetassign/internal/model"
)

// RequiredSkills resolves the union of skill requirements imposed by a set of
// orders. An empty result means no skill constraint. Orders with malformed
// skill data contribute nothing rather than failing the request.
func RequiredSkills(orders []model.Order) []string {
	set := map[string]struct{}{}
	for _, o := range orders {
		for _, s := range orderSkills(o) {
			set[s] = struct{}{}
		}
	}
	if len(set) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// orderSkills prefers the structured list and falls back to the legacy
// serialized shape.
func orderSkills(o model.Order) []string {
	if len(o.RequiredSkills) > 0 {
		return o.RequiredSkills
	}
	return ParseSkillList(o.RequiredSkillsRaw)
}

// ParseSkillList decodes a serialized skill list. Accepted shapes are a JSON
// string array and a comma-separated string; anything else yields nil.
func ParseSkillList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []string
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil
		}
		return trimAll(list)
	}
	return trimAll(strings.Split(raw, ","))
}

func trimAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
