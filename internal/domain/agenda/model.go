package agenda

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of a visit date.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusDone      Status = "done"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCancelled: true,
	StatusDone:      true,
}

// Valid reports whether s is one of the known visit states.
func (s Status) Valid() bool { return validStatuses[s] }

// Visit maps to the visit table. A visit occupies one catalog window on one
// date for one agent unless it is cancelled.
type Visit struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ClientID   string    `db:"client_id" json:"client_id,omitempty"`
	AgentID    string    `db:"agent_id" json:"agent_id,omitempty"`
	PropertyID string    `db:"property_id" json:"property_id,omitempty"`
	Date       string    `db:"visit_date" json:"date"`
	TimeWindow string    `db:"time_window" json:"time_window"`
	Status     Status    `db:"status" json:"status"`
	Confirmed  bool      `db:"-" json:"confirmed"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Occupies reports whether the visit blocks its window.
func (v *Visit) Occupies() bool { return v.Status != StatusCancelled }

// syncConfirmed keeps the display flag in line with the status.
func (v *Visit) syncConfirmed() {
	v.Confirmed = v.Status == StatusConfirmed || v.Status == StatusDone
}

// CreateRequest is the payload accepted when booking a new visit.
type CreateRequest struct {
	Date       string  `json:"date"`
	TimeWindow string  `json:"time_window"`
	ClientID   string  `json:"client_id,omitempty"`
	PropertyID string  `json:"property_id,omitempty"`
	AgentID    string  `json:"agent_id,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// RescheduleRequest moves an existing visit to another date and window.
type RescheduleRequest struct {
	Date       string `json:"date"`
	TimeWindow string `json:"time_window"`
}

// ListFilter selects visits by date range and optionally by agent.
type ListFilter struct {
	DateFrom string
	DateTo   string
	AgentID  string
}

// ParseDate validates s as a calendar date and returns its canonical form.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(DateLayout), nil
}

func mustDate(s string) time.Time {
	t, _ := time.Parse(DateLayout, s)
	return t
}
