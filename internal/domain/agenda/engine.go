package agenda

import "github.com/google/uuid"

// CanPlace reports whether window on date is free for agent. Visits listed in
// exclude do not count as occupants, which lets a visit be dropped back onto
// its own slot.
func CanPlace(date, window string, visits []Visit, agent string, exclude ...uuid.UUID) bool {
	s, ok := LookupWindow(window)
	if !ok {
		return false
	}
	var skip map[uuid.UUID]bool
	if len(exclude) > 0 {
		skip = make(map[uuid.UUID]bool, len(exclude))
		for _, id := range exclude {
			skip[id] = true
		}
	}
	return !occupied(date, visits, agent, skip)[s.Hour]
}

// Place checks that candidate can be booked against visits. The candidate's
// date and window are normalized in place.
func Place(visits []Visit, candidate *Visit) error {
	date, err := ParseDate(candidate.Date)
	if err != nil {
		return err
	}
	window, err := NormalizeWindow(candidate.TimeWindow)
	if err != nil {
		return err
	}
	candidate.Date, candidate.TimeWindow = date, window
	if !candidate.Occupies() {
		return nil
	}
	if holder := findHolder(visits, date, window, candidate.AgentID, candidate.ID); holder != nil {
		return &ConflictError{Date: date, TimeWindow: window, AgentID: candidate.AgentID, HolderID: holder.ID}
	}
	return nil
}

// Reschedule validates moving visit id to (date, window) against the snapshot
// and returns the moved copy. The snapshot is not modified. Moving a visit
// onto its own current slot always succeeds.
func Reschedule(visits []Visit, id uuid.UUID, date, window string) (Visit, error) {
	var current *Visit
	for i := range visits {
		if visits[i].ID == id {
			current = &visits[i]
			break
		}
	}
	if current == nil {
		return Visit{}, ErrNotFound
	}

	newDate, err := ParseDate(date)
	if err != nil {
		return Visit{}, err
	}
	newWindow, err := NormalizeWindow(window)
	if err != nil {
		return Visit{}, err
	}
	if current.Status == StatusCancelled {
		return Visit{}, ErrCancelled
	}

	if holder := findHolder(visits, newDate, newWindow, current.AgentID, current.ID); holder != nil {
		return Visit{}, &ConflictError{
			Date:       newDate,
			TimeWindow: newWindow,
			AgentID:    current.AgentID,
			HolderID:   holder.ID,
		}
	}

	moved := *current
	moved.Date = newDate
	moved.TimeWindow = newWindow
	moved.syncConfirmed()
	return moved, nil
}

// findHolder returns the non-cancelled visit of agent that holds window on
// date, ignoring the visit with id self.
func findHolder(visits []Visit, date, window, agent string, self uuid.UUID) *Visit {
	target, ok := LookupWindow(window)
	if !ok {
		return nil
	}
	for i := range visits {
		v := &visits[i]
		if v.ID == self || v.Date != date || v.AgentID != agent || !v.Occupies() {
			continue
		}
		if s, ok := LookupWindow(v.TimeWindow); ok && s.Hour == target.Hour {
			return v
		}
	}
	return nil
}
