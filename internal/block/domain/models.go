package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Block is a pre-purchased, account-owned credit unit. A block is consumed
// by linking it to the payment that spent it; the payment_id column is the
// exclusivity marker, there is no separate status field.
type Block struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID snowflake.ID   `gorm:"not null;index" json:"account_id"`
	PaymentID *snowflake.ID  `gorm:"index" json:"payment_id,omitempty"`
	InvoiceID *snowflake.ID  `gorm:"index" json:"invoice_id,omitempty"`
	ExpiresAt *time.Time     `gorm:"index" json:"expires_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Block) TableName() string { return "blocks" }

// IsExhausted reports whether the block has been spent.
func (b Block) IsExhausted() bool { return b.PaymentID != nil }

// IsAvailable reports whether the block can still be spent at the instant.
func (b Block) IsAvailable(now time.Time) bool {
	if b.IsExhausted() {
		return false
	}
	return b.ExpiresAt == nil || b.ExpiresAt.After(now)
}

// Summary aggregates an account's block inventory.
type Summary struct {
	AccountID snowflake.ID `json:"account_id"`
	Available int64        `json:"available"`
	Exhausted int64        `json:"exhausted"`
}

var (
	ErrBlockUnavailable = errors.New("block_unavailable")
	ErrBlockOwnership   = errors.New("block_ownership_mismatch")
)
