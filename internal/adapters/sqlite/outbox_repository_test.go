package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stocktrail/stocktrail/internal/core/domain"
)

func TestOutboxRepositoryLifecycle(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	if _, err := store.Create(ctx, widgetDraft(), testActor()); err != nil {
		t.Fatalf("create item: %v", err)
	}

	pending, err := repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending event, got %d", len(pending))
	}
	event := pending[0]
	if event.Topic != "inventory.item.created" || event.Status != "pending" || event.Attempts != 0 {
		t.Fatalf("unexpected event: %+v", event)
	}

	if err := repo.MarkDispatched(ctx, event.ID); err != nil {
		t.Fatalf("mark dispatched: %v", err)
	}
	pending, err = repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after dispatch: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("dispatched event must leave the pending set, got %d", len(pending))
	}
}

func TestOutboxRepositoryMarkFailedDefersRetry(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	if _, err := store.Create(ctx, widgetDraft(), testActor()); err != nil {
		t.Fatalf("create item: %v", err)
	}
	pending, err := repo.FetchPending(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("fetch pending: %v (%d events)", err, len(pending))
	}
	event := pending[0]

	future := time.Now().UTC().Add(time.Hour).Format(time.RFC3339Nano)
	if err := repo.MarkFailed(ctx, event.ID, 1, future, "endpoint unreachable"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err = repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after failure: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("event with a future next_attempt_at must not be fetched, got %d", len(pending))
	}

	past := time.Now().UTC().Add(-time.Minute).Format(time.RFC3339Nano)
	if err := repo.MarkFailed(ctx, event.ID, 2, past, "endpoint unreachable"); err != nil {
		t.Fatalf("mark failed again: %v", err)
	}
	pending, err = repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after backoff elapsed: %v", err)
	}
	if len(pending) != 1 || pending[0].Attempts != 2 || pending[0].LastError != "endpoint unreachable" {
		t.Fatalf("expected retryable event with attempts=2, got %+v", pending)
	}
}

func TestOutboxRepositoryMarkDead(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	if _, err := store.Create(ctx, widgetDraft(), testActor()); err != nil {
		t.Fatalf("create item: %v", err)
	}
	pending, err := repo.FetchPending(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("fetch pending: %v (%d events)", err, len(pending))
	}

	if err := repo.MarkDead(ctx, pending[0].ID, 5, "gave up"); err != nil {
		t.Fatalf("mark dead: %v", err)
	}
	pending, err = repo.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("fetch after dead: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("dead event must not be fetched, got %d", len(pending))
	}
}

func TestOutboxRepositoryFetchRespectsLimit(t *testing.T) {
	db := openTestDB(t)
	store := NewInventoryStore(db)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	for _, sku := range []string{"A1", "B1", "C1"} {
		draft := widgetDraft()
		draft.SKU = sku
		if _, err := store.Create(ctx, draft, testActor()); err != nil {
			t.Fatalf("create %s: %v", sku, err)
		}
	}

	pending, err := repo.FetchPending(ctx, 2)
	if err != nil {
		t.Fatalf("fetch pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(pending))
	}
	if pending[0].ID >= pending[1].ID {
		t.Fatalf("expected oldest-first ordering, got ids %d, %d", pending[0].ID, pending[1].ID)
	}

	var envelope domain.EventEnvelope
	if err := json.Unmarshal(pending[0].PayloadJSON, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.EventType != "item.created" || envelope.ItemSKU != "A1" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
}
