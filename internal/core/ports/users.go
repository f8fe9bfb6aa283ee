package ports

import (
	"context"

	"github.com/stocktrail/stocktrail/internal/core/domain"
)

type UserRepository interface {
	// Create persists a new user. Unique violations surface as
	// domain.ErrDuplicateEmail or domain.ErrDuplicateUsername.
	Create(ctx context.Context, user domain.User) (domain.User, error)
	// FindByIdentifier matches the identifier against email first, then username.
	FindByIdentifier(ctx context.Context, identifier string) (domain.User, error)
	FindByID(ctx context.Context, id int64) (domain.User, error)
}
