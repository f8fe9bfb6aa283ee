package usecase

import "github.com/stocktrail/stocktrail/internal/core/domain"

// Operation names one gated action on the API surface.
type Operation string

const (
	OpReadItem   Operation = "item.read"
	OpCreateItem Operation = "item.create"
	OpUpdateItem Operation = "item.update"
	OpDeleteItem Operation = "item.delete"
	OpReadAudit  Operation = "audit.read"
)

// rolePermissions is the authoritative (role, operation) table. It is the
// only enforcement point; any client-side gating is a display hint.
var rolePermissions = map[domain.Role]map[Operation]bool{
	domain.RoleAdmin: {
		OpReadItem:   true,
		OpCreateItem: true,
		OpUpdateItem: true,
		OpDeleteItem: true,
		OpReadAudit:  true,
	},
	domain.RoleManager: {
		OpReadItem:   true,
		OpCreateItem: true,
		OpUpdateItem: true,
		OpReadAudit:  true,
	},
	domain.RoleViewer: {
		OpReadItem: true,
	},
}

// Authorize returns domain.ErrForbidden unless role is allowed to perform op.
func Authorize(role domain.Role, op Operation) error {
	if rolePermissions[role][op] {
		return nil
	}
	return domain.ErrForbidden
}
