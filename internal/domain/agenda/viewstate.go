package agenda

import (
	"net/url"
	"strings"
	"time"
)

// ViewState is the calendar navigation state carried in the query string.
type ViewState struct {
	View      View   `json:"view"`
	WeekStart string `json:"weekStart"`
	Day       string `json:"day"`
	Agent     string `json:"agent,omitempty"`
}

// ViewStateFromQuery reads view, weekStart, day and agent from q. Missing or
// malformed values fall back to the current week and today.
func ViewStateFromQuery(q url.Values, now time.Time) ViewState {
	today := now.Format(DateLayout)
	vs := ViewState{View: ViewWeek, Day: today}

	if View(q.Get("view")) == ViewDay {
		vs.View = ViewDay
	}
	if d, err := ParseDate(q.Get("day")); err == nil {
		vs.Day = d
	}
	if ws, err := WeekStart(q.Get("weekStart")); err == nil {
		vs.WeekStart = ws
	} else {
		vs.WeekStart, _ = WeekStart(vs.Day)
	}
	vs.Agent = strings.TrimSpace(q.Get("agent"))
	return vs
}

// Query encodes the state back into query parameters.
func (vs ViewState) Query() url.Values {
	q := url.Values{}
	q.Set("view", string(vs.View))
	if vs.WeekStart != "" {
		q.Set("weekStart", vs.WeekStart)
	}
	if vs.Day != "" {
		q.Set("day", vs.Day)
	}
	if vs.Agent != "" {
		q.Set("agent", vs.Agent)
	}
	return q
}

// Anchor is the date the visible range is computed from.
func (vs ViewState) Anchor() string {
	if vs.View == ViewDay {
		return vs.Day
	}
	return vs.WeekStart
}

// Range returns the first and last date shown, inclusive.
func (vs ViewState) Range() (from, to string) {
	if vs.View == ViewDay {
		return vs.Day, vs.Day
	}
	start := mustDate(vs.WeekStart)
	return vs.WeekStart, start.AddDate(0, 0, 6).Format(DateLayout)
}
