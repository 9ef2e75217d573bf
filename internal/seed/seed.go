package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/blockbill/internal/account/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	plandomain "github.com/smallbiznis/blockbill/internal/plan/domain"
	"gorm.io/gorm"
)

const (
	demoAccountEmail = "demo@blockbill.dev"
	demoAccountName  = "Demo Marketplace Client"
	demoPlanCode     = "starter"
	demoPlanName     = "Starter"
)

// EnsureDemoData seeds a demo account and a starter plan so a fresh install
// has something to bill against. Safe to run on every startup.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureDemoAccount(ctx, tx, node); err != nil {
			return err
		}
		return ensureStarterPlan(ctx, tx, node)
	})
}

func ensureDemoAccount(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var account accountdomain.Account
	err := tx.WithContext(ctx).Where("email = ?", demoAccountEmail).First(&account).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	address := accountdomain.Address{
		ID:         node.Generate(),
		Line1:      "1 Market Street",
		City:       "San Francisco",
		Region:     "CA",
		PostalCode: "94105",
		Country:    "US",
		CreatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(&address).Error; err != nil {
		return err
	}

	account = accountdomain.Account{
		ID:        node.Generate(),
		Email:     demoAccountEmail,
		Name:      demoAccountName,
		AddressID: address.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return tx.WithContext(ctx).Create(&account).Error
}

func ensureStarterPlan(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var plan plandomain.Plan
	err := tx.WithContext(ctx).Where("code = ?", demoPlanCode).First(&plan).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	plan = plandomain.Plan{
		ID:        node.Generate(),
		Code:      demoPlanCode,
		Name:      demoPlanName,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&plan).Error; err != nil {
		return err
	}

	items := []lineitemdomain.LineItem{
		{
			ID:          node.Generate(),
			OwnerKind:   lineitemdomain.OwnerPlan,
			OwnerID:     plan.ID,
			Amount:      2500,
			Currency:    "USD",
			Quantity:    decimal.NewFromInt(1),
			Description: "Starter subscription",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          node.Generate(),
			OwnerKind:   lineitemdomain.OwnerPlan,
			OwnerID:     plan.ID,
			Amount:      1,
			Currency:    "BLK",
			Quantity:    decimal.NewFromInt(10),
			Description: "Starter block bundle",
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	return tx.WithContext(ctx).Create(&items).Error
}
