package domain

import (
	"strings"
	"time"
)

// LowStockThreshold is the quantity below which an item counts as low stock.
const LowStockThreshold = 10

type Item struct {
	ID          int64
	Name        string
	SKU         string
	Description string
	Quantity    int64
	UnitPrice   float64
	Category    string
	Location    string
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemDraft is the input for creating an item.
type ItemDraft struct {
	Name        string
	SKU         string
	Description string
	Quantity    int64
	UnitPrice   float64
	Category    string
	Location    string
}

func (d ItemDraft) Validate() error {
	if n := len(strings.TrimSpace(d.Name)); n < 1 || n > 255 {
		return invalid("name", "must be between 1 and 255 characters")
	}
	if n := len(strings.TrimSpace(d.SKU)); n < 1 || n > 100 {
		return invalid("sku", "must be between 1 and 100 characters")
	}
	if d.Quantity < 0 {
		return invalid("quantity", "must not be negative")
	}
	if d.UnitPrice < 0 {
		return invalid("unit_price", "must not be negative")
	}
	return nil
}

// ItemPatch is a partial update. Nil fields are left untouched. SKU is
// immutable after creation; a patch may only repeat the stored value.
type ItemPatch struct {
	Name        *string
	SKU         *string
	Description *string
	Quantity    *int64
	UnitPrice   *float64
	Category    *string
	Location    *string
}

func (p ItemPatch) Validate() error {
	if p.Name != nil {
		if n := len(strings.TrimSpace(*p.Name)); n < 1 || n > 255 {
			return invalid("name", "must be between 1 and 255 characters")
		}
	}
	if p.SKU != nil {
		if n := len(strings.TrimSpace(*p.SKU)); n < 1 || n > 100 {
			return invalid("sku", "must be between 1 and 100 characters")
		}
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		return invalid("quantity", "must not be negative")
	}
	if p.UnitPrice != nil && *p.UnitPrice < 0 {
		return invalid("unit_price", "must not be negative")
	}
	return nil
}

type ItemFilter struct {
	Search   string
	Category string
	Skip     int
	Limit    int
}

type Stats struct {
	TotalItems    int64
	TotalValue    float64
	LowStockCount int64
	CategoryCount int64
}
