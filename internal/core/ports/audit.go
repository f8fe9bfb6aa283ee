package ports

import (
	"context"

	"github.com/stocktrail/stocktrail/internal/core/domain"
)

// AuditTrailRepository reads the audit trail. There is deliberately no write
// method here: audit entries are only ever inserted inside the inventory
// store's mutation transaction.
type AuditTrailRepository interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}
