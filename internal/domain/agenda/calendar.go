package agenda

import (
	"sort"
	"strings"
	"time"
)

type View string

const (
	ViewWeek View = "week"
	ViewDay  View = "day"
)

// Day describes one column of the calendar relative to "now".
type Day struct {
	Date    string `json:"date"`
	Label   string `json:"label"`
	IsToday bool   `json:"is_today"`
	IsPast  bool   `json:"is_past"`
}

// NewDay builds the descriptor of date as seen at now. now is interpreted in
// its own location.
func NewDay(date string, now time.Time) Day {
	today := now.Format(DateLayout)
	return Day{
		Date:    date,
		Label:   FormatDate(date),
		IsToday: date == today,
		IsPast:  date < today,
	}
}

// WeekStart returns the Monday of date's ISO week. Sunday belongs to the week
// that started six days earlier.
func WeekStart(date string) (string, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return "", ErrInvalidDate
	}
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset).Format(DateLayout), nil
}

// Days expands anchor into the descriptors shown by view.
func Days(view View, anchor string, now time.Time) ([]Day, error) {
	if view == ViewDay {
		d, err := ParseDate(anchor)
		if err != nil {
			return nil, err
		}
		return []Day{NewDay(d, now)}, nil
	}
	start, err := WeekStart(anchor)
	if err != nil {
		return nil, err
	}
	first := mustDate(start)
	days := make([]Day, 7)
	for i := range days {
		days[i] = NewDay(first.AddDate(0, 0, i).Format(DateLayout), now)
	}
	return days, nil
}

// Layout holds the pixel geometry used to position events.
type Layout struct {
	RowHeight      int `json:"row_height"`
	MinEventHeight int `json:"min_event_height"`
}

var DefaultLayout = Layout{RowHeight: 64, MinEventHeight: 28}

// PositionedEvent is a visit placed on the grid.
type PositionedEvent struct {
	Visit  Visit `json:"visit"`
	Top    int   `json:"top"`
	Height int   `json:"height"`
}

// DayColumn is one day of the grid with its events.
type DayColumn struct {
	Day    Day               `json:"day"`
	Events []PositionedEvent `json:"events"`
}

// Grid is the projection of a date range for rendering.
type Grid struct {
	View    View        `json:"view"`
	Agent   string      `json:"agent,omitempty"`
	Slots   []Slot      `json:"slots"`
	Columns []DayColumn `json:"columns"`
}

// BuildGrid groups visits by day and positions them. Visits outside days,
// of another agent (when agent is set) or with an unknown window are left
// out. Overlapping events of different agents are not flagged.
func (l Layout) BuildGrid(days []Day, visits []Visit, view View, agent string) Grid {
	byDate := make(map[string][]PositionedEvent, len(days))
	for _, d := range days {
		byDate[d.Date] = nil
	}
	first := FirstHour()
	for _, v := range visits {
		if _, ok := byDate[v.Date]; !ok {
			continue
		}
		if agent != "" && v.AgentID != agent {
			continue
		}
		s, ok := LookupWindow(v.TimeWindow)
		if !ok {
			continue
		}
		v.syncConfirmed()
		height := SlotDuration * l.RowHeight / 60
		if height < l.MinEventHeight {
			height = l.MinEventHeight
		}
		byDate[v.Date] = append(byDate[v.Date], PositionedEvent{
			Visit:  v,
			Top:    (s.Hour - first) * l.RowHeight,
			Height: height,
		})
	}

	grid := Grid{View: view, Agent: agent, Slots: Slots(), Columns: make([]DayColumn, 0, len(days))}
	for _, d := range days {
		events := byDate[d.Date]
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].Top != events[j].Top {
				return events[i].Top < events[j].Top
			}
			return events[i].Visit.AgentID < events[j].Visit.AgentID
		})
		if events == nil {
			events = []PositionedEvent{}
		}
		grid.Columns = append(grid.Columns, DayColumn{Day: d, Events: events})
	}
	return grid
}

// FormatDate renders a stored date for display, e.g. "Mon 04 Mar 2024".
// Unparseable input yields an empty string.
func FormatDate(date string) string {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return ""
	}
	return d.Format("Mon 02 Jan 2006")
}
