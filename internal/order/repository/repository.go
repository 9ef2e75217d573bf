package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/blockbill/internal/account/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	lineitemrepo "github.com/smallbiznis/blockbill/internal/lineitem/repository"
	"github.com/smallbiznis/blockbill/internal/order/domain"
	"gorm.io/gorm"
)

// Repository loads and persists orders with their account and item relations.
type Repository struct {
	items *lineitemrepo.Repository
}

// Provide constructs the order repository.
func Provide(items *lineitemrepo.Repository) *Repository {
	return &Repository{items: items}
}

// Find loads an order with its account (and address) and items.
func (r *Repository) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Preload("Account").Preload("Account.Address").First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, db, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FindForUpdate locks the order row inside the enclosing transaction and
// loads its relations, so concurrent transitions serialize per order.
func (r *Repository) FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := tx.WithContext(ctx).Raw(
		`SELECT *
		 FROM orders
		 WHERE id = ? AND deleted_at IS NULL
		 FOR UPDATE`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, domain.ErrOrderNotFound
	}
	var account accountdomain.Account
	err = tx.WithContext(ctx).Preload("Address").First(&account, "id = ?", order.AccountID).Error
	if err == nil {
		order.Account = &account
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err := r.loadItems(ctx, tx, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) loadItems(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	items, err := r.items.ListForOwner(ctx, db, lineitemdomain.OwnerRef{
		Kind: lineitemdomain.OwnerOrder,
		ID:   order.ID,
	})
	if err != nil {
		return err
	}
	order.Items = items
	return nil
}

// Insert persists a new order and its items.
func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, genID *snowflake.Node, order *domain.Order) error {
	if err := tx.WithContext(ctx).Omit("Account", "Items").Create(order).Error; err != nil {
		return err
	}
	items, err := r.items.InsertAll(ctx, tx, genID, order.Items)
	if err != nil {
		return err
	}
	order.Items = items
	return nil
}

// UpdateState persists a state transition.
func (r *Repository) UpdateState(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE orders SET state = ?, updated_at = ? WHERE id = ?`,
		order.State,
		time.Now().UTC(),
		order.ID,
	).Error
}

// LinkInvoice attaches an invoice to an order through the join table.
func (r *Repository) LinkInvoice(ctx context.Context, tx *gorm.DB, orderID, invoiceID snowflake.ID) error {
	return tx.WithContext(ctx).Exec(
		`INSERT INTO order_invoices (order_id, invoice_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (order_id, invoice_id) DO NOTHING`,
		orderID,
		invoiceID,
		time.Now().UTC(),
	).Error
}

// OwnerLoader resolves orders for the polymorphic line-item registry.
type OwnerLoader struct{}

// ProvideOwnerLoader constructs the order owner loader.
func ProvideOwnerLoader() *OwnerLoader { return &OwnerLoader{} }

func (OwnerLoader) Kind() lineitemdomain.OwnerKind { return lineitemdomain.OwnerOrder }

func (OwnerLoader) Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
