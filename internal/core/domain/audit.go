package domain

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	ActionCreate AuditAction = "CREATE"
	ActionUpdate AuditAction = "UPDATE"
	ActionDelete AuditAction = "DELETE"
)

// FieldChange is one entry of an UPDATE diff.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// AuditEntry is an immutable record of one committed inventory mutation.
// Entries are written in the same transaction as the mutation they describe
// and are never updated or deleted. For CREATE and DELETE, Changes holds the
// full item snapshot; for UPDATE it holds a map of field name to FieldChange.
type AuditEntry struct {
	ID         int64
	EventID    string
	Action     AuditAction
	ItemID     int64
	ItemSKU    string
	ActorID    int64
	ActorName  string
	Changes    json.RawMessage
	OccurredAt time.Time
}

type AuditFilter struct {
	ItemID int64
	Action AuditAction
	Skip   int
	Limit  int
}
