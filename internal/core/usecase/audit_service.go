package usecase

import (
	"context"

	"github.com/stocktrail/stocktrail/internal/core/domain"
	"github.com/stocktrail/stocktrail/internal/core/ports"
)

// AuditService exposes read access to the audit trail, gated to roles that
// may inspect it. Entries are written elsewhere, inside the inventory
// store's mutation transaction.
type AuditService struct {
	repo ports.AuditTrailRepository
}

func NewAuditService(repo ports.AuditTrailRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) List(ctx context.Context, session domain.Session, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	if err := Authorize(session.Role, OpReadAudit); err != nil {
		return nil, err
	}
	filter.Limit = clampLimit(filter.Limit)
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	return s.repo.List(ctx, filter)
}

func (s *AuditService) ListForItem(ctx context.Context, session domain.Session, itemID int64) ([]domain.AuditEntry, error) {
	return s.List(ctx, session, domain.AuditFilter{ItemID: itemID})
}
