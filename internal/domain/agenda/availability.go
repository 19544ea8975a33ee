package agenda

import "github.com/google/uuid"

// AvailableSlots returns the catalog windows on date that are not held by a
// non-cancelled visit. When agent is non-empty only that agent's visits are
// considered. The result keeps catalog order.
func AvailableSlots(date string, visits []Visit, agent string) []string {
	held := occupied(date, visits, agent, nil)
	var free []string
	for _, s := range catalog {
		if !held[s.Hour] {
			free = append(free, s.Window())
		}
	}
	return free
}

// OccupiedSlots is the complement of AvailableSlots, in catalog order.
func OccupiedSlots(date string, visits []Visit, agent string) []string {
	held := occupied(date, visits, agent, nil)
	var out []string
	for _, s := range catalog {
		if held[s.Hour] {
			out = append(out, s.Window())
		}
	}
	return out
}

// occupied returns the catalog hours held on date. Visits whose id is in
// skip are ignored. A window held twice is still a single entry.
func occupied(date string, visits []Visit, agent string, skip map[uuid.UUID]bool) map[int]bool {
	held := make(map[int]bool, len(catalog))
	for i := range visits {
		v := &visits[i]
		if v.Date != date || !v.Occupies() {
			continue
		}
		if agent != "" && v.AgentID != agent {
			continue
		}
		if skip[v.ID] {
			continue
		}
		if s, ok := LookupWindow(v.TimeWindow); ok {
			held[s.Hour] = true
		}
	}
	return held
}
