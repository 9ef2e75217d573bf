package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/blockbill/internal/account"
	"github.com/smallbiznis/blockbill/internal/audit"
	"github.com/smallbiznis/blockbill/internal/block"
	"github.com/smallbiznis/blockbill/internal/clock"
	"github.com/smallbiznis/blockbill/internal/config"
	"github.com/smallbiznis/blockbill/internal/events"
	"github.com/smallbiznis/blockbill/internal/invoice"
	"github.com/smallbiznis/blockbill/internal/ledger"
	"github.com/smallbiznis/blockbill/internal/lineitem"
	"github.com/smallbiznis/blockbill/internal/migration"
	"github.com/smallbiznis/blockbill/internal/observability"
	"github.com/smallbiznis/blockbill/internal/order"
	"github.com/smallbiznis/blockbill/internal/payment"
	"github.com/smallbiznis/blockbill/internal/plan"
	"github.com/smallbiznis/blockbill/internal/seed"
	"github.com/smallbiznis/blockbill/internal/server"
	"github.com/smallbiznis/blockbill/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		events.Module,

		account.Module,
		plan.Module,
		lineitem.Module,
		order.Module,
		invoice.Module,
		payment.Module,
		block.Module,
		ledger.Module,
		audit.Module,

		fx.Invoke(bootstrap),

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func bootstrap(conn *gorm.DB, cfg config.Config) error {
	if cfg.Bootstrap.RunMigrations {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := migration.RunMigrations(sqlDB); err != nil {
			return err
		}
	}
	if cfg.Bootstrap.SeedDemoData {
		return seed.EnsureDemoData(conn)
	}
	return nil
}
