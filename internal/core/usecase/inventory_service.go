package usecase

import (
	"context"

	"github.com/stocktrail/stocktrail/internal/core/domain"
	"github.com/stocktrail/stocktrail/internal/core/ports"
)

// InventoryService is the mutation orchestrator: it checks the authorization
// gate before anything else, validates input, and delegates to the store,
// which applies the item change and its audit entry as one transaction.
// Denied or invalid requests never reach storage, so they leave no trace in
// the audit trail.
type InventoryService struct {
	store ports.InventoryStore
}

func NewInventoryService(store ports.InventoryStore) *InventoryService {
	return &InventoryService{store: store}
}

func (s *InventoryService) Create(ctx context.Context, session domain.Session, draft domain.ItemDraft) (domain.Item, error) {
	if err := Authorize(session.Role, OpCreateItem); err != nil {
		return domain.Item{}, err
	}
	if err := draft.Validate(); err != nil {
		return domain.Item{}, err
	}
	return s.store.Create(ctx, draft, session.Actor())
}

func (s *InventoryService) Update(ctx context.Context, session domain.Session, id int64, patch domain.ItemPatch) (domain.Item, error) {
	if err := Authorize(session.Role, OpUpdateItem); err != nil {
		return domain.Item{}, err
	}
	if err := patch.Validate(); err != nil {
		return domain.Item{}, err
	}
	return s.store.Update(ctx, id, patch, session.Actor())
}

func (s *InventoryService) Delete(ctx context.Context, session domain.Session, id int64) error {
	if err := Authorize(session.Role, OpDeleteItem); err != nil {
		return err
	}
	return s.store.Delete(ctx, id, session.Actor())
}

func (s *InventoryService) Get(ctx context.Context, session domain.Session, id int64) (domain.Item, error) {
	if err := Authorize(session.Role, OpReadItem); err != nil {
		return domain.Item{}, err
	}
	return s.store.Get(ctx, id)
}

func (s *InventoryService) List(ctx context.Context, session domain.Session, filter domain.ItemFilter) ([]domain.Item, error) {
	if err := Authorize(session.Role, OpReadItem); err != nil {
		return nil, err
	}
	filter.Limit = clampLimit(filter.Limit)
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	return s.store.List(ctx, filter)
}

func (s *InventoryService) Stats(ctx context.Context, session domain.Session) (domain.Stats, error) {
	if err := Authorize(session.Role, OpReadItem); err != nil {
		return domain.Stats{}, err
	}
	return s.store.Stats(ctx)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
