package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blockbill/internal/account/domain"
	"gorm.io/gorm"
)

type Repository struct{}

func Provide() *Repository { return &Repository{} }

// FindWithAddress loads an account and its billing address.
func (r *Repository) FindWithAddress(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Preload("Address").First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
