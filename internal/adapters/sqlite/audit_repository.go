package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stocktrail/stocktrail/internal/adapters/sqlite/gormsqlite"
	"github.com/stocktrail/stocktrail/internal/core/domain"
)

// AuditTrailRepository reads audit entries. Inserts happen exclusively
// inside InventoryStore mutation transactions; this type has no write path.
type AuditTrailRepository struct {
	db *gormsqlite.DB
}

func NewAuditTrailRepository(db *gormsqlite.DB) *AuditTrailRepository {
	return &AuditTrailRepository{db: db}
}

func (r *AuditTrailRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	var rows []auditEventModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditEventModel{})
		if filter.ItemID > 0 {
			query = query.Where("item_id = ?", filter.ItemID)
		}
		if filter.Action != "" {
			query = query.Where("action = ?", string(filter.Action))
		}
		return query.
			Order("id DESC").
			Offset(filter.Skip).
			Limit(filter.Limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	result := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.AuditEntry{
			ID:         row.ID,
			EventID:    row.EventID,
			Action:     domain.AuditAction(row.Action),
			ItemID:     row.ItemID,
			ItemSKU:    row.ItemSKU,
			ActorID:    row.ActorID,
			ActorName:  row.ActorName,
			Changes:    json.RawMessage(row.ChangesJSON),
			OccurredAt: row.OccurredAt,
		})
	}

	return result, nil
}
