package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	paymentdomain "github.com/smallbiznis/blockbill/internal/payment/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptKind labels who drove a payment attempt.
type AttemptKind string

const (
	AttemptManual AttemptKind = "manual"
	AttemptAuto   AttemptKind = "auto"
)

// Invoice is a bill derived from one or more orders. Paid/closed/attempted
// and the attempt count are the only stored state; subtotal, total and
// amount due are always computed live from the related items and payments.
type Invoice struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID    snowflake.ID      `gorm:"not null;index" json:"account_id"`
	AddressID    snowflake.ID      `gorm:"not null" json:"address_id"`
	Paid         bool              `gorm:"not null;default:false" json:"paid"`
	Closed       bool              `gorm:"not null;default:false" json:"closed"`
	Attempted    bool              `gorm:"not null;default:false" json:"attempted"`
	AttemptCount int               `gorm:"not null;default:0" json:"attempt_count"`
	Note         string            `gorm:"type:text;not null;default:''" json:"note"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	DeletedAt    gorm.DeletedAt    `gorm:"index" json:"-"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// Items and Payments are loaded through their repositories.
	Items    []lineitemdomain.LineItem `gorm:"-" json:"items,omitempty"`
	Payments []paymentdomain.Payment   `gorm:"-" json:"payments,omitempty"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Subtotal is the per-currency sum of the invoice items.
func (inv *Invoice) Subtotal() map[string]int64 {
	return lineitemdomain.NewCalculator(inv.Items).Subtotal()
}

// Total mirrors Subtotal. Discount application hangs off this hook once it
// exists; today it is a pass-through.
func (inv *Invoice) Total() map[string]int64 {
	return inv.Subtotal()
}

// AmountDue is the remaining per-currency balance after the loaded payments.
func (inv *Invoice) AmountDue() map[string]int64 {
	return lineitemdomain.NewDueCalculator(inv.Items).AmountDue(inv.paymentAmounts())
}

func (inv *Invoice) paymentAmounts() []lineitemdomain.PaymentAmount {
	amounts := make([]lineitemdomain.PaymentAmount, 0, len(inv.Payments))
	for _, payment := range inv.Payments {
		amounts = append(amounts, payment.AsAmount())
	}
	return amounts
}

// RecordAttempt marks the invoice attempted. A manual attempt that already
// holds exactly one recorded attempt is not counted again; everything else
// increments the counter.
func (inv *Invoice) RecordAttempt(kind AttemptKind) {
	inv.Attempted = true
	if kind == AttemptManual && inv.AttemptCount == 1 {
		return
	}
	inv.AttemptCount++
}

// MarkAsPaid flags the invoice paid, records the attempt and closes it.
func (inv *Invoice) MarkAsPaid() {
	inv.Paid = true
	inv.RecordAttempt(AttemptManual)
	inv.MarkAsClosed()
}

// MarkAsClosed closes the invoice. Closing is independent of payment; an
// unpaid invoice may be force-closed.
func (inv *Invoice) MarkAsClosed() {
	inv.Closed = true
}

// ApplyPayment adds the payment to the in-memory collection and advances the
// paid/attempted state from the recomputed amount due. If any currency still
// carries a balance the invoice stays open as a partial payment; otherwise it
// is marked paid and closed. No persistence happens here.
func (inv *Invoice) ApplyPayment(payment *paymentdomain.Payment) error {
	if payment == nil || payment.InvoiceID != inv.ID {
		return ErrPaymentInvoiceMismatch
	}
	if len(inv.Items) == 0 {
		return ErrInvoiceItemsMissing
	}
	currency := lineitemdomain.NormalizeCurrency(payment.Currency)
	if inv.AmountDue()[currency] <= 0 {
		return ErrCurrencyMismatch
	}

	inv.Payments = append(inv.Payments, *payment)

	for _, due := range inv.AmountDue() {
		if due > 0 {
			inv.RecordAttempt(AttemptManual)
			return nil
		}
	}
	inv.MarkAsPaid()
	return nil
}
