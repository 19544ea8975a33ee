package task

import (
	"time"

	"github.com/inmo/backoffice/internal/platform/kpi"
)

// BoardOrder is the left-to-right order of the kanban columns.
var BoardOrder = []string{StatusPending, StatusInProgress, StatusDone}

// Column is one kanban column.
type Column struct {
	Status   string  `json:"status"`
	Count    int     `json:"count"`
	Critical int     `json:"critical"`
	Tasks    []*Task `json:"tasks"`
}

// IsOverdue reports whether t is open and its due day has passed.
func IsOverdue(t *Task, now time.Time) bool {
	return kpi.Classify(t, now) == kpi.Overdue
}

// IsCritical reports whether t is an open high-priority task that is overdue
// or due today.
func IsCritical(t *Task, now time.Time) bool {
	if t.Priority != PriorityHigh {
		return false
	}
	switch kpi.Classify(t, now) {
	case kpi.Overdue, kpi.DueToday:
		return true
	}
	return false
}

// GroupByState returns one column per status in BoardOrder, every column
// present even when empty. Tasks with an unknown status are left out. Input
// order is kept inside each column.
func GroupByState(tasks []*Task, now time.Time) []Column {
	idx := make(map[string]int, len(BoardOrder))
	cols := make([]Column, len(BoardOrder))
	for i, st := range BoardOrder {
		idx[st] = i
		cols[i] = Column{Status: st, Tasks: []*Task{}}
	}
	for _, t := range tasks {
		i, ok := idx[t.Status]
		if !ok {
			continue
		}
		cols[i].Tasks = append(cols[i].Tasks, t)
		cols[i].Count++
		if IsCritical(t, now) {
			cols[i].Critical++
		}
	}
	return cols
}
