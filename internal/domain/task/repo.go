package task

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("task not found")
	ErrInvalidFilter = errors.New("invalid filter")
)

type TaskRepository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Task, int, error)
	// Search filters by status, priority, assignee_id, owner_id, property_id,
	// q (title substring), due_from and due_to.
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Task, int, error)
}
