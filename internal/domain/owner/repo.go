package owner

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("owner not found")
	ErrInvalidFilter = errors.New("invalid filter")
)

type OwnerRepository interface {
	Create(ctx context.Context, o *Owner) error
	GetByID(ctx context.Context, id uuid.UUID) (*Owner, error)
	Update(ctx context.Context, o *Owner) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search filters by status, q (name, email or phone substring),
	// exclusivity_to and follow_up_to.
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Owner, int, error)
}
