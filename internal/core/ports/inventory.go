package ports

import (
	"context"

	"github.com/stocktrail/stocktrail/internal/core/domain"
)

// InventoryStore is the storage port for inventory mutations and reads.
// Every mutation writes its audit entry and outbox event in the same
// transaction as the item change; either all three commit or none do.
type InventoryStore interface {
	Create(ctx context.Context, draft domain.ItemDraft, actor domain.Actor) (domain.Item, error)
	Update(ctx context.Context, id int64, patch domain.ItemPatch, actor domain.Actor) (domain.Item, error)
	Delete(ctx context.Context, id int64, actor domain.Actor) error
	Get(ctx context.Context, id int64) (domain.Item, error)
	List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)
	Stats(ctx context.Context) (domain.Stats, error)
}
