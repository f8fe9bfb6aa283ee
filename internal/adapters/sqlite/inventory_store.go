package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocktrail/stocktrail/internal/adapters/sqlite/gormsqlite"
	"github.com/stocktrail/stocktrail/internal/core/domain"
)

type itemModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name        string    `gorm:"column:name;not null"`
	SKU         string    `gorm:"column:sku;not null"`
	Description string    `gorm:"column:description;not null"`
	Quantity    int64     `gorm:"column:quantity;not null"`
	UnitPrice   float64   `gorm:"column:unit_price;not null"`
	Category    string    `gorm:"column:category;not null"`
	Location    string    `gorm:"column:location;not null"`
	CreatedBy   int64     `gorm:"column:created_by;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (itemModel) TableName() string {
	return "inventory_items"
}

type auditEventModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventID     string    `gorm:"column:event_id;not null"`
	Action      string    `gorm:"column:action;not null"`
	ItemID      int64     `gorm:"column:item_id;not null"`
	ItemSKU     string    `gorm:"column:item_sku;not null"`
	ActorID     int64     `gorm:"column:actor_id;not null"`
	ActorName   string    `gorm:"column:actor_name;not null"`
	ChangesJSON string    `gorm:"column:changes_json;not null"`
	OccurredAt  time.Time `gorm:"column:occurred_at;not null"`
}

func (auditEventModel) TableName() string {
	return "audit_events"
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

// InventoryStore persists items and, inside the same write transaction,
// the audit entry and outbox event for every mutation. A mutation whose
// audit insert fails rolls back entirely; an applied-but-unlogged (or
// logged-but-unapplied) state is never observable.
type InventoryStore struct {
	db *gormsqlite.DB
}

func NewInventoryStore(db *gormsqlite.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

func (s *InventoryStore) Create(ctx context.Context, draft domain.ItemDraft, actor domain.Actor) (domain.Item, error) {
	var result domain.Item

	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		now := time.Now().UTC()
		model := itemModel{
			Name:        strings.TrimSpace(draft.Name),
			SKU:         strings.TrimSpace(draft.SKU),
			Description: draft.Description,
			Quantity:    draft.Quantity,
			UnitPrice:   draft.UnitPrice,
			Category:    draft.Category,
			Location:    draft.Location,
			CreatedBy:   actor.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := tx.Create(&model).Error; err != nil {
			if isUniqueViolation(err, "inventory_items.sku") {
				return domain.ErrDuplicateSKU
			}
			return fmt.Errorf("insert item: %w", err)
		}

		item := toDomainItem(model)
		changes, err := json.Marshal(snapshotOf(item))
		if err != nil {
			return fmt.Errorf("marshal create snapshot: %w", err)
		}

		if err := insertAuditAndOutbox(tx.DB, domain.ActionCreate, item, actor, changes, now); err != nil {
			return err
		}

		result = item
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}

	return result, nil
}

func (s *InventoryStore) Update(ctx context.Context, id int64, patch domain.ItemPatch, actor domain.Actor) (domain.Item, error) {
	var result domain.Item

	err := s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var before itemModel
		if err := tx.Where("id = ?", id).First(&before).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("load item: %w", err)
		}

		if patch.SKU != nil && strings.TrimSpace(*patch.SKU) != before.SKU {
			return &domain.ValidationError{Field: "sku", Message: "sku is immutable"}
		}

		after := before
		changes := applyPatch(&after, patch)
		if len(changes) == 0 {
			// No field changed: the item is returned as-is and no audit
			// entry is written. Idempotent PUTs leave no trail.
			result = toDomainItem(before)
			return nil
		}

		now := time.Now().UTC()
		after.UpdatedAt = now
		if err := tx.Save(&after).Error; err != nil {
			return fmt.Errorf("update item: %w", err)
		}

		item := toDomainItem(after)
		changesJSON, err := json.Marshal(changes)
		if err != nil {
			return fmt.Errorf("marshal update diff: %w", err)
		}

		if err := insertAuditAndOutbox(tx.DB, domain.ActionUpdate, item, actor, changesJSON, now); err != nil {
			return err
		}

		result = item
		return nil
	})
	if err != nil {
		return domain.Item{}, err
	}

	return result, nil
}

func (s *InventoryStore) Delete(ctx context.Context, id int64, actor domain.Actor) error {
	return s.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		var before itemModel
		if err := tx.Where("id = ?", id).First(&before).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("load item before delete: %w", err)
		}

		if err := tx.Where("id = ?", id).Delete(&itemModel{}).Error; err != nil {
			return fmt.Errorf("delete item: %w", err)
		}

		item := toDomainItem(before)
		changes, err := json.Marshal(snapshotOf(item))
		if err != nil {
			return fmt.Errorf("marshal delete snapshot: %w", err)
		}

		now := time.Now().UTC()
		return insertAuditAndOutbox(tx.DB, domain.ActionDelete, item, actor, changes, now)
	})
}

func (s *InventoryStore) Get(ctx context.Context, id int64) (domain.Item, error) {
	var model itemModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("id = ?", id).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Item{}, domain.ErrNotFound
		}
		return domain.Item{}, fmt.Errorf("get item: %w", err)
	}

	return toDomainItem(model), nil
}

func (s *InventoryStore) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	var models []itemModel
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&itemModel{})
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			query = query.Where("name LIKE ? OR sku LIKE ? OR description LIKE ?", like, like, like)
		}
		if filter.Category != "" {
			query = query.Where("category = ?", filter.Category)
		}
		return query.
			Order("created_at DESC, id DESC").
			Offset(filter.Skip).
			Limit(filter.Limit).
			Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	items := make([]domain.Item, 0, len(models))
	for _, model := range models {
		items = append(items, toDomainItem(model))
	}
	return items, nil
}

func (s *InventoryStore) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Model(&itemModel{}).Count(&stats.TotalItems).Error; err != nil {
			return fmt.Errorf("count items: %w", err)
		}
		if err := tx.Model(&itemModel{}).
			Select("COALESCE(SUM(quantity * unit_price), 0)").
			Scan(&stats.TotalValue).Error; err != nil {
			return fmt.Errorf("sum value: %w", err)
		}
		if err := tx.Model(&itemModel{}).
			Where("quantity < ?", domain.LowStockThreshold).
			Count(&stats.LowStockCount).Error; err != nil {
			return fmt.Errorf("count low stock: %w", err)
		}
		if err := tx.Model(&itemModel{}).
			Where("category <> ''").
			Select("COUNT(DISTINCT category)").
			Scan(&stats.CategoryCount).Error; err != nil {
			return fmt.Errorf("count categories: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Stats{}, err
	}

	stats.TotalValue = math.Round(stats.TotalValue*100) / 100
	return stats, nil
}

// applyPatch mutates model in place and returns the field-level diff.
// A patch value equal to the stored one does not count as a change.
func applyPatch(model *itemModel, patch domain.ItemPatch) map[string]domain.FieldChange {
	changes := make(map[string]domain.FieldChange)

	if patch.Name != nil && *patch.Name != model.Name {
		changes["name"] = domain.FieldChange{Old: model.Name, New: *patch.Name}
		model.Name = *patch.Name
	}
	if patch.Description != nil && *patch.Description != model.Description {
		changes["description"] = domain.FieldChange{Old: model.Description, New: *patch.Description}
		model.Description = *patch.Description
	}
	if patch.Quantity != nil && *patch.Quantity != model.Quantity {
		changes["quantity"] = domain.FieldChange{Old: model.Quantity, New: *patch.Quantity}
		model.Quantity = *patch.Quantity
	}
	if patch.UnitPrice != nil && *patch.UnitPrice != model.UnitPrice {
		changes["unit_price"] = domain.FieldChange{Old: model.UnitPrice, New: *patch.UnitPrice}
		model.UnitPrice = *patch.UnitPrice
	}
	if patch.Category != nil && *patch.Category != model.Category {
		changes["category"] = domain.FieldChange{Old: model.Category, New: *patch.Category}
		model.Category = *patch.Category
	}
	if patch.Location != nil && *patch.Location != model.Location {
		changes["location"] = domain.FieldChange{Old: model.Location, New: *patch.Location}
		model.Location = *patch.Location
	}

	return changes
}

type itemSnapshot struct {
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Description string  `json:"description,omitempty"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Category    string  `json:"category,omitempty"`
	Location    string  `json:"location,omitempty"`
}

func snapshotOf(item domain.Item) itemSnapshot {
	return itemSnapshot{
		Name:        item.Name,
		SKU:         item.SKU,
		Description: item.Description,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		Category:    item.Category,
		Location:    item.Location,
	}
}

func insertAuditAndOutbox(tx *gorm.DB, action domain.AuditAction, item domain.Item, actor domain.Actor, changes json.RawMessage, occurredAt time.Time) error {
	eventID := uuid.NewString()

	audit := auditEventModel{
		EventID:     eventID,
		Action:      string(action),
		ItemID:      item.ID,
		ItemSKU:     item.SKU,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		ChangesJSON: string(changes),
		OccurredAt:  occurredAt,
	}
	if err := tx.Create(&audit).Error; err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	envelope := domain.EventEnvelope{
		EventID:    eventID,
		EventType:  eventTypeFor(action),
		ItemID:     item.ID,
		ItemSKU:    item.SKU,
		Actor:      actor.Name,
		OccurredAt: occurredAt,
		Payload:    changes,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	outbox := outboxEventModel{
		EventID:       eventID,
		Topic:         "inventory." + envelope.EventType,
		PayloadJSON:   string(payload),
		Status:        "pending",
		Attempts:      0,
		NextAttemptAt: occurredAt,
		LastError:     "",
		CreatedAt:     occurredAt,
	}
	if err := tx.Create(&outbox).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	return nil
}

func eventTypeFor(action domain.AuditAction) string {
	switch action {
	case domain.ActionCreate:
		return "item.created"
	case domain.ActionUpdate:
		return "item.updated"
	default:
		return "item.deleted"
	}
}

func toDomainItem(model itemModel) domain.Item {
	return domain.Item{
		ID:          model.ID,
		Name:        model.Name,
		SKU:         model.SKU,
		Description: model.Description,
		Quantity:    model.Quantity,
		UnitPrice:   model.UnitPrice,
		Category:    model.Category,
		Location:    model.Location,
		CreatedBy:   model.CreatedBy,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
