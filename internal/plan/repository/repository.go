package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"github.com/smallbiznis/blockbill/internal/plan/domain"
	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan_not_found")

// Repository persists catalog plans.
type Repository struct{}

// Provide constructs the plan repository.
func Provide() *Repository { return &Repository{} }

// Find returns a plan by ID.
func (r *Repository) Find(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).First(&plan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListActive returns the active catalog plans.
func (r *Repository) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Plan, error) {
	var plans []domain.Plan
	err := db.WithContext(ctx).Where("active").Order("code ASC").Find(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// OwnerLoader resolves plans for the polymorphic line-item registry.
type OwnerLoader struct{}

// ProvideOwnerLoader constructs the plan owner loader.
func ProvideOwnerLoader() *OwnerLoader { return &OwnerLoader{} }

func (OwnerLoader) Kind() lineitemdomain.OwnerKind { return lineitemdomain.OwnerPlan }

func (OwnerLoader) Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Plan{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
