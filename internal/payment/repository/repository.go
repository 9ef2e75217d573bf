package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blockbill/internal/payment/domain"
	"gorm.io/gorm"
)

// Repository persists payments and refunds.
type Repository struct {
	genID *snowflake.Node
}

// Provide constructs the payment repository.
func Provide(genID *snowflake.Node) *Repository {
	return &Repository{genID: genID}
}

// Find returns a payment by ID.
func (r *Repository) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := db.WithContext(ctx).Where("id = ?", id).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// FindForUpdate locks a payment row for the enclosing transaction.
func (r *Repository) FindForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payments []domain.Payment
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM payments WHERE id = ? FOR UPDATE`,
		id,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, domain.ErrPaymentNotFound
	}
	return &payments[0], nil
}

// ListByInvoice returns an invoice's payments ordered by creation.
func (r *Repository) ListByInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// Insert persists a payment, assigning its ID when unset.
func (r *Repository) Insert(ctx context.Context, tx *gorm.DB, payment *domain.Payment) error {
	if payment.ID == 0 {
		payment.ID = r.genID.Generate()
	}
	return tx.WithContext(ctx).Create(payment).Error
}

// InsertRefund persists a refund, assigning its ID when unset.
func (r *Repository) InsertRefund(ctx context.Context, tx *gorm.DB, refund *domain.Refund) error {
	if refund.ID == 0 {
		refund.ID = r.genID.Generate()
	}
	return tx.WithContext(ctx).Create(refund).Error
}

// RefundedTotal sums the refunds already issued against a payment.
func (r *Repository) RefundedTotal(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (int64, error) {
	var total int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM refunds WHERE payment_id = ?`,
		paymentID,
	).Row().Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}
