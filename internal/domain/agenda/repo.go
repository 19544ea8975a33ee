package agenda

import (
	"context"

	"github.com/google/uuid"
)

type VisitRepository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	Update(ctx context.Context, v *Visit) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns visits ordered by date and window.
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Visit, int, error)
	// ListByDate returns every visit of date, optionally for one agent.
	ListByDate(ctx context.Context, date, agentID string) ([]Visit, error)
}
