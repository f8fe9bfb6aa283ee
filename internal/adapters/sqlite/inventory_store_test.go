package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stocktrail/stocktrail/internal/core/domain"
)

func TestInventoryStoreCreateWritesAuditAndOutbox(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	audits := NewAuditTrailRepository(db)

	item, err := store.Create(context.Background(), widgetDraft(), testActor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if item.CreatedAt.IsZero() || !item.CreatedAt.Equal(item.UpdatedAt) {
		t.Fatalf("expected created_at == updated_at, got %v / %v", item.CreatedAt, item.UpdatedAt)
	}

	entries, err := audits.List(context.Background(), domain.AuditFilter{ItemID: item.ID, Limit: 10})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Action != domain.ActionCreate || entry.ItemSKU != "W1" || entry.ActorID != 1 || entry.ActorName != "root" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if entry.OccurredAt.Before(item.UpdatedAt) {
		t.Fatalf("audit occurred_at %v precedes item updated_at %v", entry.OccurredAt, item.UpdatedAt)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(entry.Changes, &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot["sku"] != "W1" || snapshot["quantity"] != float64(5) {
		t.Fatalf("unexpected snapshot: %v", snapshot)
	}

	if n := countRows(t, db, &outboxEventModel{}); n != 1 {
		t.Fatalf("expected one outbox row, got %d", n)
	}
}

func TestInventoryStoreCreateDuplicateSKURollsBack(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)

	if _, err := store.Create(context.Background(), widgetDraft(), testActor()); err != nil {
		t.Fatalf("first create: %v", err)
	}

	draft := widgetDraft()
	draft.Name = "Other widget"
	if _, err := store.Create(context.Background(), draft, testActor()); !errors.Is(err, domain.ErrDuplicateSKU) {
		t.Fatalf("expected ErrDuplicateSKU, got %v", err)
	}

	if n := countRows(t, db, &auditEventModel{}); n != 1 {
		t.Fatalf("failed create must leave no audit entry, got %d rows", n)
	}
	if n := countRows(t, db, &outboxEventModel{}); n != 1 {
		t.Fatalf("failed create must leave no outbox row, got %d rows", n)
	}
}

func TestInventoryStoreUpdateRecordsDiff(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	audits := NewAuditTrailRepository(db)

	item, err := store.Create(context.Background(), widgetDraft(), testActor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	qty := int64(20)
	updated, err := store.Update(context.Background(), item.ID, domain.ItemPatch{Quantity: &qty}, testActor())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Quantity != 20 {
		t.Fatalf("expected quantity 20, got %d", updated.Quantity)
	}
	if !updated.UpdatedAt.After(item.UpdatedAt) {
		t.Fatalf("expected updated_at to advance, got %v after %v", updated.UpdatedAt, item.UpdatedAt)
	}

	entries, err := audits.List(context.Background(), domain.AuditFilter{ItemID: item.ID, Action: domain.ActionUpdate, Limit: 10})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one update entry, got %d", len(entries))
	}

	var changes map[string]domain.FieldChange
	if err := json.Unmarshal(entries[0].Changes, &changes); err != nil {
		t.Fatalf("decode diff: %v", err)
	}
	change, ok := changes["quantity"]
	if !ok || len(changes) != 1 {
		t.Fatalf("expected only a quantity change, got %v", changes)
	}
	if change.Old != float64(5) || change.New != float64(20) {
		t.Fatalf("unexpected quantity change: %+v", change)
	}
}

func TestInventoryStoreUpdateNoopWritesNoAudit(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)

	item, err := store.Create(context.Background(), widgetDraft(), testActor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	qty := item.Quantity
	name := item.Name
	same, err := store.Update(context.Background(), item.ID, domain.ItemPatch{Quantity: &qty, Name: &name}, testActor())
	if err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if same.UpdatedAt.After(item.UpdatedAt) {
		t.Fatalf("noop update must not touch updated_at: %v vs %v", same.UpdatedAt, item.UpdatedAt)
	}

	if n := countRows(t, db, &auditEventModel{}); n != 1 {
		t.Fatalf("noop update must not add audit entries, got %d rows", n)
	}
	if n := countRows(t, db, &outboxEventModel{}); n != 1 {
		t.Fatalf("noop update must not add outbox rows, got %d rows", n)
	}
}

func TestInventoryStoreUpdateRejectsSKUChange(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)

	item, err := store.Create(context.Background(), widgetDraft(), testActor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sku := "W2"
	_, err = store.Update(context.Background(), item.ID, domain.ItemPatch{SKU: &sku}, testActor())
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "sku" {
		t.Fatalf("expected sku validation error, got %v", err)
	}

	// Echoing the stored SKU back is fine.
	same := "W1"
	if _, err := store.Update(context.Background(), item.ID, domain.ItemPatch{SKU: &same}, testActor()); err != nil {
		t.Fatalf("update with unchanged sku: %v", err)
	}
}

func TestInventoryStoreUpdateMissingItem(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)

	qty := int64(1)
	if _, err := store.Update(context.Background(), 999, domain.ItemPatch{Quantity: &qty}, testActor()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInventoryStoreDeleteKeepsAuditHistory(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	audits := NewAuditTrailRepository(db)

	item, err := store.Create(context.Background(), widgetDraft(), testActor())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	qty := int64(20)
	if _, err := store.Update(context.Background(), item.ID, domain.ItemPatch{Quantity: &qty}, testActor()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Delete(context.Background(), item.ID, testActor()); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := store.Get(context.Background(), item.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	items, err := store.List(context.Background(), domain.ItemFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list after delete, got %d items", len(items))
	}

	entries, err := audits.List(context.Background(), domain.AuditFilter{ItemID: item.ID, Limit: 10})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected full create/update/delete history, got %d entries", len(entries))
	}
	if entries[0].Action != domain.ActionDelete || entries[2].Action != domain.ActionCreate {
		t.Fatalf("expected newest-first ordering, got %s .. %s", entries[0].Action, entries[2].Action)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(entries[0].Changes, &snapshot); err != nil {
		t.Fatalf("decode delete snapshot: %v", err)
	}
	if snapshot["sku"] != "W1" || snapshot["quantity"] != float64(20) {
		t.Fatalf("delete snapshot must hold final state, got %v", snapshot)
	}
}

func TestInventoryStoreDeleteMissingItem(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)

	if err := store.Delete(context.Background(), 999, testActor()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInventoryStoreListFilters(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	ctx := context.Background()

	drafts := []domain.ItemDraft{
		{Name: "Hammer", SKU: "H1", Quantity: 3, UnitPrice: 10, Category: "tools"},
		{Name: "Nails", SKU: "N1", Description: "box of nails", Quantity: 500, UnitPrice: 0.01, Category: "fasteners"},
		{Name: "Screwdriver", SKU: "S1", Quantity: 7, UnitPrice: 5, Category: "tools"},
	}
	for _, draft := range drafts {
		if _, err := store.Create(ctx, draft, testActor()); err != nil {
			t.Fatalf("create %s: %v", draft.SKU, err)
		}
	}

	tools, err := store.List(ctx, domain.ItemFilter{Category: "tools", Limit: 10})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}

	found, err := store.List(ctx, domain.ItemFilter{Search: "nail", Limit: 10})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].SKU != "N1" {
		t.Fatalf("expected N1 from description search, got %+v", found)
	}

	page, err := store.List(ctx, domain.ItemFilter{Limit: 2})
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
}

func TestInventoryStoreStats(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	ctx := context.Background()

	drafts := []domain.ItemDraft{
		{Name: "Hammer", SKU: "H1", Quantity: 3, UnitPrice: 10, Category: "tools"},
		{Name: "Nails", SKU: "N1", Quantity: 500, UnitPrice: 0.01, Category: "fasteners"},
		{Name: "Screwdriver", SKU: "S1", Quantity: 7, UnitPrice: 5, Category: "tools"},
	}
	for _, draft := range drafts {
		if _, err := store.Create(ctx, draft, testActor()); err != nil {
			t.Fatalf("create %s: %v", draft.SKU, err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalItems != 3 {
		t.Fatalf("total items: got %d", stats.TotalItems)
	}
	// 3*10 + 500*0.01 + 7*5 = 70.00
	if stats.TotalValue != 70.0 {
		t.Fatalf("total value: got %v", stats.TotalValue)
	}
	if stats.LowStockCount != 2 {
		t.Fatalf("low stock (quantity < 10): got %d", stats.LowStockCount)
	}
	if stats.CategoryCount != 2 {
		t.Fatalf("distinct categories: got %d", stats.CategoryCount)
	}
}

func TestInventoryStoreStatsEmpty(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalItems != 0 || stats.TotalValue != 0 || stats.LowStockCount != 0 || stats.CategoryCount != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}
