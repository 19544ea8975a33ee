package agenda

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Errors returned by the scheduling core and the agenda service.
var (
	ErrNotFound      = errors.New("visit not found")
	ErrConflict      = errors.New("time window already booked")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidWindow = errors.New("time window is not in the slot catalog")
	ErrInvalidStatus = errors.New("invalid visit status")
	ErrCancelled     = errors.New("cancelled visits cannot be rescheduled")
	ErrPastDate      = errors.New("date is in the past")
	ErrReferenceLen  = errors.New("client, agent and property ids are limited to 64 characters")
)

// ConflictError reports the visit that already holds the requested window.
type ConflictError struct {
	Date       string
	TimeWindow string
	AgentID    string
	HolderID   uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.HolderID == uuid.Nil {
		return fmt.Sprintf("%s on %s: %v", e.TimeWindow, e.Date, ErrConflict)
	}
	return fmt.Sprintf("%s on %s is held by visit %s: %v", e.TimeWindow, e.Date, e.HolderID, ErrConflict)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IsValidation reports whether err is caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrCancelled) ||
		errors.Is(err, ErrReferenceLen)
}
