package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service exposes invoice queries and the force-close transition. Payment
// application lives with the cashier.
type Service interface {
	List(ctx context.Context, accountID snowflake.ID) ([]Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (*Invoice, error)
	ForceClose(ctx context.Context, id snowflake.ID, note string) (*Invoice, error)
}

var (
	ErrInvoiceNotFound        = errors.New("invoice_not_found")
	ErrInvoiceClosed          = errors.New("invoice_closed")
	ErrPaymentInvoiceMismatch = errors.New("payment_invoice_mismatch")
	ErrInvoiceItemsMissing    = errors.New("invoice_items_missing")
	ErrCurrencyMismatch       = errors.New("currency_mismatch")
)
