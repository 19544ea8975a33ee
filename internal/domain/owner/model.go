package owner

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of owner dates.
const DateLayout = "2006-01-02"

const (
	StatusProspect = "prospect"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Owner maps to the owner table: a property owner the agency works with.
type Owner struct {
	ID             uuid.UUID `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          *string   `db:"email" json:"email,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Status         string    `db:"status" json:"status"`
	ExclusivityEnd *string   `db:"exclusivity_end" json:"exclusivity_end,omitempty"`
	NextFollowUp   *string   `db:"next_follow_up" json:"next_follow_up,omitempty"`
	Notes          *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

func (o *Owner) KPIState() string { return o.Status }

// KPIDone treats inactive owners as closed: their follow-ups never count.
func (o *Owner) KPIDone() bool { return o.Status == StatusInactive }

// KPIDue is the next follow-up date.
func (o *Owner) KPIDue() *time.Time { return parseDate(o.NextFollowUp) }

func parseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	d, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil
	}
	return &d
}
