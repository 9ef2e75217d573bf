package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"gorm.io/gorm"
)

// Method distinguishes how a payment settled.
type Method string

const (
	MethodCharge Method = "charge"
	MethodBlock  Method = "block"
)

// Payment is money applied to an invoice, either a captured processor charge
// or a batch of consumed block credits.
type Payment struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceID     snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Method        Method       `gorm:"type:text;not null" json:"method"`
	Amount        int64        `gorm:"not null" json:"amount"`
	Currency      string       `gorm:"type:text;not null" json:"currency"`
	ChargeID      *string      `gorm:"type:text" json:"charge_id,omitempty"`
	ChargeGateway *string      `gorm:"type:text" json:"charge_gateway,omitempty"`
	Note          string       `gorm:"type:text;not null;default:''" json:"note"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

// BeforeSave normalizes the currency code to upper case.
func (p *Payment) BeforeSave(tx *gorm.DB) error {
	p.Currency = lineitemdomain.NormalizeCurrency(p.Currency)
	return nil
}

// AsAmount projects the payment into the calculator's shape.
func (p Payment) AsAmount() lineitemdomain.PaymentAmount {
	return lineitemdomain.PaymentAmount{Amount: p.Amount, Currency: p.Currency}
}

// Refund reverses part of a payment.
type Refund struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	PaymentID snowflake.ID `gorm:"not null;index" json:"payment_id"`
	Amount    int64        `gorm:"not null" json:"amount"`
	Method    string       `gorm:"type:text;not null" json:"method"`
	Note      string       `gorm:"type:text;not null;default:''" json:"note"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Refund) TableName() string { return "refunds" }
