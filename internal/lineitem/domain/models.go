package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OwnerKind discriminates which entity a line item belongs to.
type OwnerKind string

const (
	OwnerOrder   OwnerKind = "order"
	OwnerInvoice OwnerKind = "invoice"
	OwnerPlan    OwnerKind = "plan"
)

// Valid reports whether the kind is one of the known owner variants.
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerOrder, OwnerInvoice, OwnerPlan:
		return true
	}
	return false
}

// OwnerRef identifies the owning entity of a line item.
type OwnerRef struct {
	Kind OwnerKind
	ID   snowflake.ID
}

// LineItem is a priced, quantified entry belonging to an order, invoice or plan.
// Amount is an integer price per unit in minor currency units; Quantity may be
// fractional, and Total truncates back to minor units so money math stays integral.
type LineItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	OwnerKind   OwnerKind       `gorm:"column:owner_kind;type:text;not null;index:idx_line_items_owner,priority:1" json:"owner_kind"`
	OwnerID     snowflake.ID    `gorm:"column:owner_id;not null;index:idx_line_items_owner,priority:2" json:"owner_id"`
	Amount      int64           `gorm:"not null" json:"amount"`
	Currency    string          `gorm:"type:text;not null" json:"currency"`
	Quantity    decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"quantity"`
	Description string          `gorm:"type:text;not null;default:''" json:"description"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "line_items" }

// BeforeSave normalizes the currency code to upper case.
func (i *LineItem) BeforeSave(tx *gorm.DB) error {
	i.Currency = NormalizeCurrency(i.Currency)
	return nil
}

// Total is the derived amount × quantity value in minor currency units.
func (i LineItem) Total() int64 {
	return decimal.NewFromInt(i.Amount).Mul(i.Quantity).IntPart()
}

// IsNew reports whether the item has not been assigned a persisted identity.
func (i LineItem) IsNew() bool { return i.ID == 0 }

// Duplicate copies the monetary fields onto a fresh, unpersisted item owned
// by the given entity. Identity is reset; the caller assigns it on persist.
func (i LineItem) Duplicate(kind OwnerKind, ownerID snowflake.ID) LineItem {
	return LineItem{
		OwnerKind:   kind,
		OwnerID:     ownerID,
		Amount:      i.Amount,
		Currency:    NormalizeCurrency(i.Currency),
		Quantity:    i.Quantity,
		Description: i.Description,
	}
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}
