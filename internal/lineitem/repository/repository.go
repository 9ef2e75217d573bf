package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"gorm.io/gorm"
)

// Repository persists line items for their polymorphic owners.
type Repository struct{}

// Provide constructs the line-item repository.
func Provide() *Repository { return &Repository{} }

// ListForOwner loads the items belonging to one owner, oldest first.
func (r *Repository) ListForOwner(ctx context.Context, db *gorm.DB, owner domain.OwnerRef) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := db.WithContext(ctx).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// InsertAll persists a batch of items, assigning identities from the node.
func (r *Repository) InsertAll(ctx context.Context, tx *gorm.DB, genID *snowflake.Node, items []domain.LineItem) ([]domain.LineItem, error) {
	if len(items) == 0 {
		return items, nil
	}
	for i := range items {
		if items[i].ID == 0 {
			items[i].ID = genID.Generate()
		}
		items[i].Currency = domain.NormalizeCurrency(items[i].Currency)
	}
	if err := tx.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
