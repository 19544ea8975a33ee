package task

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and storage format of a due date.
const DateLayout = "2006-01-02"

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task maps to the task table. A task is a back-office to-do, optionally
// linked to an owner or a property.
type Task struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Status      string     `db:"status" json:"status"`
	Priority    string     `db:"priority" json:"priority"`
	DueDate     *string    `db:"due_date" json:"due_date,omitempty"`
	AssigneeID  *string    `db:"assignee_id" json:"assignee_id,omitempty"`
	OwnerID     *uuid.UUID `db:"owner_id" json:"owner_id,omitempty"`
	PropertyID  *string    `db:"property_id" json:"property_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

func (t *Task) KPIState() string { return t.Status }

func (t *Task) KPIDone() bool { return t.Status == StatusDone }

// KPIDue returns the due date as UTC midnight, or nil when it is unset or
// unparseable.
func (t *Task) KPIDue() *time.Time {
	if t.DueDate == nil {
		return nil
	}
	d, err := time.Parse(DateLayout, *t.DueDate)
	if err != nil {
		return nil
	}
	return &d
}
