package generator

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	blockdomain "github.com/smallbiznis/blockbill/internal/block/domain"
	"github.com/smallbiznis/blockbill/internal/block/repository"
	"github.com/smallbiznis/blockbill/internal/clock"
	"github.com/smallbiznis/blockbill/internal/config"
	"github.com/smallbiznis/blockbill/internal/events"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"github.com/smallbiznis/blockbill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Config  config.Config
	Repo    *repository.Repository
	Clock   clock.Clock
	Outbox  *events.Outbox
	Metrics *metrics.PaymentMetrics `optional:"true"`
}

// Generator mints block credits when an invoice carrying block line items
// is paid. One block is minted per unit of the invoice's block-currency
// subtotal.
type Generator struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    *repository.Repository
	clock   clock.Clock
	outbox  *events.Outbox
	metrics *metrics.PaymentMetrics

	currency string
	ttl      time.Duration
}

// NewGenerator constructs the block generator.
func NewGenerator(p Params) *Generator {
	return &Generator{
		db:       p.DB,
		log:      p.Log.Named("block.generator"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		outbox:   p.Outbox,
		metrics:  p.Metrics,
		currency: p.Config.BlockCurrency,
		ttl:      p.Config.BlockTTL,
	}
}

// MintForInvoice mints blocks for a freshly paid invoice and reports how
// many were created. Invoices without block line items mint nothing.
func (g *Generator) MintForInvoice(ctx context.Context, inv *invoicedomain.Invoice) (int, error) {
	if g == nil || g.db == nil || g.genID == nil {
		return 0, errors.New("block_generator_unavailable")
	}
	if inv == nil || !inv.Paid {
		return 0, nil
	}

	count := lineitemdomain.NewCalculator(inv.Items).SubtotalFor(g.currency)
	if count <= 0 {
		return 0, nil
	}

	now := g.clock.Now()
	invoiceID := inv.ID
	blocks := make([]blockdomain.Block, 0, count)
	for i := int64(0); i < count; i++ {
		block := blockdomain.Block{
			ID:        g.genID.Generate(),
			AccountID: inv.AccountID,
			InvoiceID: &invoiceID,
			CreatedAt: now,
		}
		if g.ttl > 0 {
			expiresAt := now.Add(g.ttl)
			block.ExpiresAt = &expiresAt
		}
		blocks = append(blocks, block)
	}

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := g.repo.Mint(ctx, tx, blocks); err != nil {
			return err
		}
		return g.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventBlocksMinted,
			Payload: events.BlocksPayload{
				AccountID: inv.AccountID.String(),
				InvoiceID: inv.ID.String(),
				Count:     len(blocks),
			}.ToMap(),
			DedupeKey: "blocks_minted:" + inv.ID.String(),
		})
	})
	if err != nil {
		return 0, err
	}

	g.metrics.AddBlocksMinted(len(blocks))
	g.log.Info("blocks minted",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("account_id", inv.AccountID.String()),
		zap.Int("count", len(blocks)),
	)
	return len(blocks), nil
}
