// Package kpi rolls up record collections into dashboard counters.
package kpi

import "time"

// Record is anything that has a workflow state and an optional due date.
type Record interface {
	KPIState() string
	KPIDone() bool
	// KPIDue returns the due date, or nil when the record has none. Only the
	// calendar day is significant.
	KPIDue() *time.Time
}

// Snapshot is the aggregate shown on dashboards. It is recomputed on every
// call and never cached.
type Snapshot struct {
	Total         int            `json:"total"`
	ByState       map[string]int `json:"by_state"`
	Overdue       int            `json:"overdue"`
	DueToday      int            `json:"due_today"`
	DueWithinWeek int            `json:"due_within_week"`
}

// Bucket is the due-date class of a single record.
type Bucket int

const (
	NoBucket Bucket = iota
	Overdue
	DueToday
	DueWithinWeek
)

// Summarize counts records in a single pass. Each open record with a due
// date lands in at most one bucket, checked in the order overdue, due today,
// due within the week.
func Summarize[R Record](records []R, now time.Time) Snapshot {
	s := Snapshot{ByState: make(map[string]int)}
	for _, r := range records {
		s.Total++
		s.ByState[r.KPIState()]++
		switch Classify(r, now) {
		case Overdue:
			s.Overdue++
		case DueToday:
			s.DueToday++
		case DueWithinWeek:
			s.DueWithinWeek++
		}
	}
	return s
}

// Classify returns the bucket r falls in at now. Done records and records
// without a due date are never bucketed.
func Classify(r Record, now time.Time) Bucket {
	if r.KPIDone() {
		return NoBucket
	}
	due := r.KPIDue()
	if due == nil {
		return NoBucket
	}
	return ClassifyDate(*due, now)
}

// ClassifyDate buckets a calendar date relative to now.
func ClassifyDate(due, now time.Time) Bucket {
	today := StartOfDay(now)
	d := DateIn(due, now.Location())
	switch {
	case d.Before(today):
		return Overdue
	case d.Equal(today):
		return DueToday
	case d.After(today) && !d.After(now.AddDate(0, 0, 7)):
		return DueWithinWeek
	}
	return NoBucket
}

// StartOfDay is midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateIn reinterprets the calendar day of t as midnight in loc. Dates read
// from the database arrive as UTC midnight.
func DateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
