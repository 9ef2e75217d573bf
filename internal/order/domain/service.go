package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
)

// NewOrderItem is the caller-supplied shape of a line on a new order.
type NewOrderItem struct {
	Amount      int64
	Currency    string
	Quantity    string
	Description string
}

// Service mediates order lifecycle transitions, enforcing cross-entity
// preconditions around each state change.
type Service interface {
	Create(ctx context.Context, accountID snowflake.ID, note string, items []NewOrderItem) (*Order, error)
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	Submit(ctx context.Context, id snowflake.ID) (*Order, error)
	Reject(ctx context.Context, id snowflake.ID) (*Order, error)
	Approve(ctx context.Context, id snowflake.ID) (*Order, error)
	Invoice(ctx context.Context, id snowflake.ID) (*Order, *invoicedomain.Invoice, []lineitemdomain.LineItem, error)
}

var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrUnknownStatus     = errors.New("unknown_order_status")
	ErrInvalidState      = errors.New("invalid_order_state")
	ErrRelationNotLoaded = errors.New("order_relation_missing")
	ErrNoOrderItems      = errors.New("order_items_missing")
	ErrInvalidItem       = errors.New("invalid_order_item")
)
