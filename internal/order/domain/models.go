package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/blockbill/internal/account/domain"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"gorm.io/gorm"
)

// Status is the order lifecycle state. Ordinals are persisted and
// order-significant; never renumber.
type Status int

const (
	StatusDraft Status = iota
	StatusPending
	StatusRejected
	StatusApproved
	StatusPartial
	StatusInvoiced
)

var statusLabels = [...]string{"Draft", "Pending", "Rejected", "Approved", "Partial", "Invoiced"}

// Label returns the display label for the status.
func (s Status) Label() string {
	if s < 0 || int(s) >= len(statusLabels) {
		return ""
	}
	return statusLabels[s]
}

// ParseStatus maps a label back to its ordinal, title-casing the input first.
func ParseStatus(label string) (Status, error) {
	normalized := titleCase(label)
	for i, known := range statusLabels {
		if known == normalized {
			return Status(i), nil
		}
	}
	return 0, ErrUnknownStatus
}

func titleCase(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

// Order is a client's request to purchase, owning a set of line items.
type Order struct {
	ID        snowflake.ID           `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID           `gorm:"not null;index" json:"account_id"`
	State     Status                 `gorm:"not null;default:0" json:"state"`
	Note      string                 `gorm:"type:text;not null;default:''" json:"note"`
	Account   *accountdomain.Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	DeletedAt gorm.DeletedAt         `gorm:"index" json:"-"`
	CreatedAt time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time              `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Items are loaded through the polymorphic line-item repository.
	Items []lineitemdomain.LineItem `gorm:"-" json:"items,omitempty"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// Status returns the label of the current state.
func (o *Order) StatusLabel() string { return o.State.Label() }

// SetStatus writes the state from a label, rejecting unknown labels.
func (o *Order) SetStatus(label string) error {
	status, err := ParseStatus(label)
	if err != nil {
		return err
	}
	o.State = status
	return nil
}

func (o *Order) IsDraft() bool             { return o.State == StatusDraft }
func (o *Order) IsPending() bool           { return o.State == StatusPending }
func (o *Order) IsRejected() bool          { return o.State == StatusRejected }
func (o *Order) IsApproved() bool          { return o.State == StatusApproved }
func (o *Order) IsPartiallyInvoiced() bool { return o.State == StatusPartial }
func (o *Order) IsInvoiced() bool          { return o.State == StatusInvoiced }

// Total is the per-currency subtotal of the loaded order items.
func (o *Order) Total() map[string]int64 {
	return lineitemdomain.NewCalculator(o.Items).Subtotal()
}

// ToInvoice constructs an unpersisted invoice from the order, duplicating
// every order item onto the new invoice identity. The order's account, the
// account's address and at least one item must be loaded. Pure construction;
// persistence belongs to the mediator.
func (o *Order) ToInvoice(genID *snowflake.Node) (*invoicedomain.Invoice, error) {
	if o.Account == nil || o.Account.Address == nil || len(o.Items) == 0 {
		return nil, ErrRelationNotLoaded
	}

	inv := &invoicedomain.Invoice{
		ID:        genID.Generate(),
		AccountID: o.Account.ID,
		AddressID: o.Account.AddressID,
	}
	items := make([]lineitemdomain.LineItem, 0, len(o.Items))
	for _, orderItem := range o.Items {
		duplicated := orderItem.Duplicate(lineitemdomain.OwnerInvoice, inv.ID)
		duplicated.ID = genID.Generate()
		items = append(items, duplicated)
	}
	inv.Items = items
	return inv, nil
}
