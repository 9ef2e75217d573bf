package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blockbill/internal/ledger/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
}

type ledgerService struct {
	log   *zap.Logger
	genID *snowflake.Node
}

// NewService constructs the ledger writer.
func NewService(p Params) domain.Service {
	return &ledgerService{
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
	}
}

func (s *ledgerService) CreateEntry(
	ctx context.Context,
	tx *gorm.DB,
	sourceType string,
	sourceID snowflake.ID,
	currency string,
	occurredAt time.Time,
	lines []domain.LedgerEntryLine,
) error {
	if strings.TrimSpace(sourceType) == "" {
		return domain.ErrInvalidSourceType
	}
	if sourceID == 0 {
		return domain.ErrInvalidSourceID
	}
	currency = lineitemdomain.NormalizeCurrency(currency)
	if currency == "" {
		return domain.ErrInvalidCurrency
	}
	if occurredAt.IsZero() {
		return domain.ErrInvalidOccurredAt
	}
	if err := domain.ValidateBalanced(lines); err != nil {
		return err
	}

	entry := domain.LedgerEntry{
		ID:         s.genID.Generate(),
		SourceType: sourceType,
		SourceID:   sourceID,
		Currency:   currency,
		OccurredAt: occurredAt.UTC(),
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}

	for i := range lines {
		line := &lines[i]
		if line.AccountID == 0 {
			accountID, err := s.ensureAccount(ctx, tx, line.AccountCode)
			if err != nil {
				return err
			}
			line.AccountID = accountID
		}
		line.ID = s.genID.Generate()
		line.LedgerEntryID = entry.ID
	}
	if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
		return err
	}

	s.log.Debug("ledger entry posted",
		zap.String("source_type", sourceType),
		zap.String("source_id", sourceID.String()),
		zap.String("currency", currency),
		zap.Int("lines", len(lines)),
	)
	return nil
}

// ensureAccount resolves a chart-of-accounts code to its row, creating the
// account on first use.
func (s *ledgerService) ensureAccount(ctx context.Context, tx *gorm.DB, code string) (snowflake.ID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, domain.ErrInvalidAccount
	}

	var account domain.LedgerAccount
	err := tx.WithContext(ctx).Where("code = ?", code).First(&account).Error
	if err == nil {
		return account.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	account = domain.LedgerAccount{
		ID:   s.genID.Generate(),
		Code: code,
		Name: strings.ReplaceAll(code, "_", " "),
	}
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		return 0, err
	}
	return account.ID, nil
}
