package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blockbill/internal/block/domain"
	"gorm.io/gorm"
)

// Repository persists block credits.
type Repository struct{}

// Provide constructs the block repository.
func Provide() *Repository { return &Repository{} }

// FindForUpdate locks the given blocks for the enclosing transaction so a
// concurrent payment or refund cannot consume or release them mid-flight.
func (r *Repository) FindForUpdate(ctx context.Context, tx *gorm.DB, ids []snowflake.ID) ([]domain.Block, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var blocks []domain.Block
	err := tx.WithContext(ctx).Raw(
		`SELECT *
		 FROM blocks
		 WHERE id IN ? AND deleted_at IS NULL
		 ORDER BY id
		 FOR UPDATE`,
		ids,
	).Scan(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// Consume marks the blocks as spent by the payment. All rows must still be
// unspent; a shortfall means another transaction won the race.
func (r *Repository) Consume(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, paymentID snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	result := tx.WithContext(ctx).Exec(
		`UPDATE blocks
		 SET payment_id = ?
		 WHERE id IN ? AND payment_id IS NULL AND deleted_at IS NULL`,
		paymentID,
		ids,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != int64(len(ids)) {
		return domain.ErrBlockUnavailable
	}
	return nil
}

// ListForPaymentLock locks and returns the blocks consumed by a payment.
func (r *Repository) ListForPaymentLock(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) ([]domain.Block, error) {
	var blocks []domain.Block
	err := tx.WithContext(ctx).Raw(
		`SELECT *
		 FROM blocks
		 WHERE payment_id = ? AND deleted_at IS NULL
		 ORDER BY id
		 FOR UPDATE`,
		paymentID,
	).Scan(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// Release detaches the blocks from their payment, returning them to the
// account's available pool.
func (r *Repository) Release(ctx context.Context, tx *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Exec(
		`UPDATE blocks SET payment_id = NULL WHERE id IN ?`,
		ids,
	).Error
}

// Mint persists freshly generated blocks.
func (r *Repository) Mint(ctx context.Context, tx *gorm.DB, blocks []domain.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&blocks).Error
}

// Summary counts an account's available and exhausted blocks.
func (r *Repository) Summary(ctx context.Context, db *gorm.DB, accountID snowflake.ID, now time.Time) (domain.Summary, error) {
	summary := domain.Summary{AccountID: accountID}
	err := db.WithContext(ctx).Raw(
		`SELECT
		   COALESCE(SUM(CASE WHEN payment_id IS NULL AND (expires_at IS NULL OR expires_at > ?) THEN 1 ELSE 0 END), 0) AS available,
		   COALESCE(SUM(CASE WHEN payment_id IS NOT NULL THEN 1 ELSE 0 END), 0) AS exhausted
		 FROM blocks
		 WHERE account_id = ? AND deleted_at IS NULL`,
		now,
		accountID,
	).Row().Scan(&summary.Available, &summary.Exhausted)
	if err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}

// ExpireBatch soft-deletes a batch of expired, unspent blocks and reports
// how many rows it retired.
func (r *Repository) ExpireBatch(ctx context.Context, tx *gorm.DB, now time.Time, limit int) (int64, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE blocks
		 SET deleted_at = ?
		 WHERE id IN (
		   SELECT id
		   FROM blocks
		   WHERE deleted_at IS NULL
		     AND payment_id IS NULL
		     AND expires_at IS NOT NULL
		     AND expires_at <= ?
		   ORDER BY expires_at
		   FOR UPDATE SKIP LOCKED
		   LIMIT ?
		 )`,
		now,
		now,
		limit,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
