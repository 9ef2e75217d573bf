package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	"github.com/smallbiznis/blockbill/internal/payment/domain"
)

// ChargeInput describes a card payment against an invoice. A zero Amount
// charges the invoice's full outstanding balance in the given currency.
type ChargeInput struct {
	InvoiceID snowflake.ID
	Currency  string
	Amount    int64
	Source    string
	Note      string
}

// BlockInput describes a block payment against an invoice.
type BlockInput struct {
	InvoiceID snowflake.ID
	BlockIDs  []snowflake.ID
	Note      string
}

// RefundInput describes a block refund against an earlier block payment.
type RefundInput struct {
	PaymentID snowflake.ID
	Amount    int64
	Note      string
}

// Cashier settles invoices. Every settlement runs in a single database
// transaction holding a row lock on the invoice, so concurrent attempts
// against the same invoice serialize instead of overpaying it.
type Cashier interface {
	PayByCharge(ctx context.Context, input ChargeInput) (*invoicedomain.Invoice, *domain.Payment, error)
	PayByBlock(ctx context.Context, input BlockInput) (*invoicedomain.Invoice, *domain.Payment, error)
	RefundByBlock(ctx context.Context, input RefundInput) (*domain.Refund, error)
}
