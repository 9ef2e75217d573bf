package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blockbill/internal/block/domain"
	"github.com/smallbiznis/blockbill/internal/block/repository"
	"github.com/smallbiznis/blockbill/internal/cache"
	"github.com/smallbiznis/blockbill/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const summaryTTL = 10 * time.Second

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  *repository.Repository
	Clock clock.Clock
}

// Service exposes read access to an account's block inventory.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  *repository.Repository
	clock clock.Clock

	summaries *cache.TTLCache[snowflake.ID, domain.Summary]
}

// NewService constructs the block read service.
func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("block.service"),
		repo:      p.Repo,
		clock:     p.Clock,
		summaries: cache.NewTTLCache[snowflake.ID, domain.Summary](),
	}
}

// Summary returns the account's available and exhausted block counts. The
// result is briefly cached; dashboards poll this endpoint aggressively.
func (s *Service) Summary(ctx context.Context, accountID snowflake.ID) (domain.Summary, error) {
	if summary, ok := s.summaries.Get(accountID); ok {
		return summary, nil
	}

	summary, err := s.repo.Summary(ctx, s.db, accountID, s.clock.Now())
	if err != nil {
		return domain.Summary{}, err
	}
	s.summaries.Set(accountID, summary, summaryTTL)
	return summary, nil
}

// Invalidate drops the cached summary after a payment or refund touches
// the account's blocks.
func (s *Service) Invalidate(accountID snowflake.ID) {
	s.summaries.Delete(accountID)
}
