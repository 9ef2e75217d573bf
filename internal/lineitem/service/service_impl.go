package service

import (
	"context"

	"github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"github.com/smallbiznis/blockbill/internal/lineitem/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    *repository.Repository
	Loaders []domain.OwnerLoader `group:"lineable_loaders"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     *repository.Repository
	registry *domain.Registry
}

// NewService builds the line-item query service over the registered owner loaders.
func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("lineitem.service"),
		repo:     p.Repo,
		registry: domain.NewRegistry(p.Loaders),
	}
}

func (s *Service) ListForOwner(ctx context.Context, owner domain.OwnerRef) ([]domain.LineItem, error) {
	if !owner.Kind.Valid() {
		return nil, domain.ErrUnknownOwnerKind
	}
	loader, ok := s.registry.Loader(owner.Kind)
	if !ok {
		return nil, domain.ErrUnknownOwnerKind
	}
	exists, err := loader.Exists(ctx, s.db, owner.ID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrOwnerNotFound
	}
	return s.repo.ListForOwner(ctx, s.db, owner)
}
