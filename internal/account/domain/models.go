package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Account is a marketplace client that places orders and owns block credits.
type Account struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Email     string         `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name      string         `gorm:"type:text;not null" json:"name"`
	AddressID snowflake.ID   `gorm:"not null" json:"address_id"`
	Address   *Address       `gorm:"foreignKey:AddressID" json:"address,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Address is the billing address stamped onto invoices.
type Address struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	Line1      string       `gorm:"type:text;not null" json:"line1"`
	Line2      string       `gorm:"type:text;not null;default:''" json:"line2"`
	City       string       `gorm:"type:text;not null" json:"city"`
	Region     string       `gorm:"type:text;not null;default:''" json:"region"`
	PostalCode string       `gorm:"type:text;not null;default:''" json:"postal_code"`
	Country    string       `gorm:"type:text;not null" json:"country"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Address) TableName() string { return "addresses" }

var ErrAccountNotFound = errors.New("account_not_found")
