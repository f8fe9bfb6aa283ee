package domain

import (
	"encoding/json"
	"time"
)

// EventEnvelope is the wire form of a mutation event delivered through the
// outbox. The audit trail, not the outbox, is the source of truth; delivery
// is at-least-once and may lag the committed mutation.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	ItemID     int64           `json:"item_id"`
	ItemSKU    string          `json:"item_sku"`
	Actor      string          `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
