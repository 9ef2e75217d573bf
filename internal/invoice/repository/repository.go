package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blockbill/internal/invoice/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	lineitemrepo "github.com/smallbiznis/blockbill/internal/lineitem/repository"
	paymentdomain "github.com/smallbiznis/blockbill/internal/payment/domain"
	"gorm.io/gorm"
)

// Repository loads and persists invoices together with their item and
// payment relations.
type Repository struct {
	items *lineitemrepo.Repository
}

// Provide constructs the invoice repository.
func Provide(items *lineitemrepo.Repository) *Repository {
	return &Repository{items: items}
}

// Find loads an invoice with its items and payments.
func (r *Repository) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadRelations(ctx, db, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

// FindForUpdate locks the invoice row for the duration of the enclosing
// transaction, then loads its relations. Payment application serializes on
// this lock so two concurrent attempts cannot both read a stale amount due.
func (r *Repository) FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := tx.WithContext(ctx).Raw(
		`SELECT *
		 FROM invoices
		 WHERE id = ? AND deleted_at IS NULL
		 FOR UPDATE`,
		id,
	).Scan(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, domain.ErrInvoiceNotFound
	}
	if err := r.loadRelations(ctx, tx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) loadRelations(ctx context.Context, db *gorm.DB, inv *domain.Invoice) error {
	items, err := r.items.ListForOwner(ctx, db, lineitemdomain.OwnerRef{
		Kind: lineitemdomain.OwnerInvoice,
		ID:   inv.ID,
	})
	if err != nil {
		return err
	}
	inv.Items = items

	// Payment amounts load net of refunds so amount-due reflects reversals.
	var payments []paymentdomain.Payment
	err = db.WithContext(ctx).Raw(
		`SELECT p.id, p.invoice_id, p.method,
		        p.amount - COALESCE(r.refunded, 0) AS amount,
		        p.currency, p.charge_id, p.charge_gateway, p.note, p.created_at
		 FROM payments p
		 LEFT JOIN (
		   SELECT payment_id, SUM(amount) AS refunded
		   FROM refunds
		   GROUP BY payment_id
		 ) r ON r.payment_id = p.id
		 WHERE p.invoice_id = ?
		 ORDER BY p.id ASC`,
		inv.ID,
	).Scan(&payments).Error
	if err != nil {
		return err
	}
	inv.Payments = payments
	return nil
}

// ListByAccount returns an account's invoices, newest first, without relations.
func (r *Repository) ListByAccount(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	query := db.WithContext(ctx).Order("id DESC")
	if accountID != 0 {
		query = query.Where("account_id = ?", accountID)
	}
	if err := query.Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// Insert persists a freshly constructed invoice and its duplicated items.
func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, genID *snowflake.Node, inv *domain.Invoice) error {
	if err := tx.WithContext(ctx).Omit("Items", "Payments").Create(inv).Error; err != nil {
		return err
	}
	items, err := r.items.InsertAll(ctx, tx, genID, inv.Items)
	if err != nil {
		return err
	}
	inv.Items = items
	return nil
}

// UpdateFlags persists the mutable payment-state columns.
func (r *Repository) UpdateFlags(ctx context.Context, tx *gorm.DB, inv *domain.Invoice) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET paid = ?, closed = ?, attempted = ?, attempt_count = ?, note = ?, updated_at = ?
		 WHERE id = ?`,
		inv.Paid,
		inv.Closed,
		inv.Attempted,
		inv.AttemptCount,
		inv.Note,
		time.Now().UTC(),
		inv.ID,
	).Error
}

// OwnerLoader resolves invoices for the polymorphic line-item registry.
type OwnerLoader struct{}

// ProvideOwnerLoader constructs the invoice owner loader.
func ProvideOwnerLoader() *OwnerLoader { return &OwnerLoader{} }

func (OwnerLoader) Kind() lineitemdomain.OwnerKind { return lineitemdomain.OwnerInvoice }

func (OwnerLoader) Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Invoice{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
