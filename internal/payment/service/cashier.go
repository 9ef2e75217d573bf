package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/blockbill/internal/audit/domain"
	blockdomain "github.com/smallbiznis/blockbill/internal/block/domain"
	"github.com/smallbiznis/blockbill/internal/block/generator"
	blockrepo "github.com/smallbiznis/blockbill/internal/block/repository"
	blockservice "github.com/smallbiznis/blockbill/internal/block/service"
	"github.com/smallbiznis/blockbill/internal/clock"
	"github.com/smallbiznis/blockbill/internal/config"
	"github.com/smallbiznis/blockbill/internal/events"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/blockbill/internal/invoice/repository"
	ledgerdomain "github.com/smallbiznis/blockbill/internal/ledger/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"github.com/smallbiznis/blockbill/internal/observability/metrics"
	"github.com/smallbiznis/blockbill/internal/payment/adapters"
	"github.com/smallbiznis/blockbill/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/blockbill/internal/payment/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Config    config.Config
	Clock     clock.Clock
	Gateways  *adapters.Registry
	Payments  *paymentrepo.Repository
	Invoices  *invoicerepo.Repository
	Blocks    *blockrepo.Repository
	Summaries *blockservice.Service
	Generator *generator.Generator
	Ledger    ledgerdomain.Service
	Audit     auditdomain.Service
	Outbox    *events.Outbox
	Metrics   *metrics.PaymentMetrics `optional:"true"`
}

type cashier struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	clock     clock.Clock
	gateways  *adapters.Registry
	payments  *paymentrepo.Repository
	invoices  *invoicerepo.Repository
	blocks    *blockrepo.Repository
	summaries *blockservice.Service
	generator *generator.Generator
	ledger    ledgerdomain.Service
	audit     auditdomain.Service
	outbox    *events.Outbox
	metrics   *metrics.PaymentMetrics
}

// NewCashier constructs the settlement service.
func NewCashier(p Params) Cashier {
	return &cashier{
		db:        p.DB,
		log:       p.Log.Named("payment.cashier"),
		cfg:       p.Config,
		clock:     p.Clock,
		gateways:  p.Gateways,
		payments:  p.Payments,
		invoices:  p.Invoices,
		blocks:    p.Blocks,
		summaries: p.Summaries,
		generator: p.Generator,
		ledger:    p.Ledger,
		audit:     p.Audit,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
	}
}

// PayByCharge settles an invoice balance in one currency with a card charge,
// either the caller's amount or the full amount due. The gateway call runs
// inside the invoice's row lock, so a second attempt against the same invoice
// waits and then sees the updated amount due instead of double-charging. A
// gateway failure rolls the whole transaction back; no invoice or payment
// state survives a declined charge.
func (c *cashier) PayByCharge(ctx context.Context, input ChargeInput) (*invoicedomain.Invoice, *domain.Payment, error) {
	currency := lineitemdomain.NormalizeCurrency(input.Currency)
	if currency == "" {
		return nil, nil, domain.ErrInvalidCurrency
	}
	if input.Amount < 0 {
		return nil, nil, domain.ErrInvalidAmount
	}
	gateway, err := c.gateways.Gateway(c.cfg.ChargeGateway)
	if err != nil {
		return nil, nil, err
	}

	var (
		inv       *invoicedomain.Invoice
		payment   *domain.Payment
		chargeErr error
	)
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err = c.invoices.FindForUpdate(ctx, tx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Closed {
			return invoicedomain.ErrInvoiceClosed
		}
		if len(inv.Items) == 0 {
			return invoicedomain.ErrInvoiceItemsMissing
		}
		due := inv.AmountDue()[currency]
		if due <= 0 {
			return invoicedomain.ErrCurrencyMismatch
		}
		amount := input.Amount
		if amount == 0 {
			amount = due
		}
		if amount > due {
			return domain.ErrInvalidAmount
		}

		charge, err := gateway.CreateCharge(ctx, domain.ChargeRequest{
			Amount:      amount,
			Currency:    currency,
			Source:      input.Source,
			Description: "invoice " + inv.ID.String(),
			Metadata:    map[string]string{"invoice_id": inv.ID.String()},
		})
		if err != nil {
			chargeErr = err
			return err
		}

		payment = &domain.Payment{
			InvoiceID:     inv.ID,
			Method:        domain.MethodCharge,
			Amount:        amount,
			Currency:      currency,
			ChargeID:      &charge.ID,
			ChargeGateway: &charge.Gateway,
			Note:          input.Note,
		}
		if err := c.payments.Insert(ctx, tx, payment); err != nil {
			return err
		}
		if err := inv.ApplyPayment(payment); err != nil {
			return err
		}
		if err := c.invoices.UpdateFlags(ctx, tx, inv); err != nil {
			return err
		}
		if err := c.postPayment(ctx, tx, payment, ledgerdomain.AccountCodeCashClearing); err != nil {
			return err
		}
		if err := c.auditInvoice(ctx, inv, "invoice.payment", map[string]any{
			"payment_id": payment.ID.String(),
			"method":     string(payment.Method),
			"currency":   currency,
			"amount":     amount,
		}); err != nil {
			return err
		}
		return c.publishSettled(ctx, tx, inv, payment)
	})
	if err != nil {
		if chargeErr != nil {
			c.metrics.ObserveFailure(string(domain.MethodCharge))
		}
		return nil, nil, err
	}

	c.metrics.ObserveSettlement(string(domain.MethodCharge), payment.Currency, payment.Amount)
	c.afterPaid(ctx, inv)
	return inv, payment, nil
}

// PayByBlock settles part of the invoice's block-currency balance by
// consuming the account's pre-purchased blocks, one unit each.
func (c *cashier) PayByBlock(ctx context.Context, input BlockInput) (*invoicedomain.Invoice, *domain.Payment, error) {
	if len(input.BlockIDs) == 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	var (
		inv     *invoicedomain.Invoice
		payment *domain.Payment
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = c.invoices.FindForUpdate(ctx, tx, input.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Closed {
			return invoicedomain.ErrInvoiceClosed
		}
		if len(inv.Items) == 0 {
			return invoicedomain.ErrInvoiceItemsMissing
		}

		blocks, err := c.blocks.FindForUpdate(ctx, tx, input.BlockIDs)
		if err != nil {
			return err
		}
		if len(blocks) != len(input.BlockIDs) {
			return domain.ErrBlockCountMismatch
		}
		now := c.clock.Now()
		for _, block := range blocks {
			if block.AccountID != inv.AccountID {
				return blockdomain.ErrBlockOwnership
			}
			if !block.IsAvailable(now) {
				return blockdomain.ErrBlockUnavailable
			}
		}

		payment = &domain.Payment{
			InvoiceID: inv.ID,
			Method:    domain.MethodBlock,
			Amount:    int64(len(blocks)),
			Currency:  c.cfg.BlockCurrency,
			Note:      input.Note,
		}
		if err := c.payments.Insert(ctx, tx, payment); err != nil {
			return err
		}
		if err := c.blocks.Consume(ctx, tx, input.BlockIDs, payment.ID); err != nil {
			return err
		}
		if err := inv.ApplyPayment(payment); err != nil {
			return err
		}
		if err := c.invoices.UpdateFlags(ctx, tx, inv); err != nil {
			return err
		}
		if err := c.postPayment(ctx, tx, payment, ledgerdomain.AccountCodeBlockCredits); err != nil {
			return err
		}
		if err := c.auditInvoice(ctx, inv, "invoice.payment", map[string]any{
			"payment_id": payment.ID.String(),
			"method":     string(payment.Method),
			"currency":   payment.Currency,
			"amount":     payment.Amount,
		}); err != nil {
			return err
		}
		return c.publishSettled(ctx, tx, inv, payment)
	})
	if err != nil {
		return nil, nil, err
	}

	c.metrics.ObserveSettlement(string(domain.MethodBlock), payment.Currency, payment.Amount)
	c.metrics.AddBlocksConsumed(len(input.BlockIDs))
	c.summaries.Invalidate(inv.AccountID)
	return inv, payment, nil
}

// RefundByBlock returns consumed blocks to the account's pool and reduces the
// payment by the refunded amount. A zero amount is a no-op. A refund that
// reopens a balance also reopens the invoice.
func (c *cashier) RefundByBlock(ctx context.Context, input RefundInput) (*domain.Refund, error) {
	if input.Amount == 0 {
		return nil, nil
	}
	if input.Amount < 0 {
		return nil, domain.ErrInvalidAmount
	}

	var (
		inv    *invoicedomain.Invoice
		refund *domain.Refund
	)
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := c.payments.FindForUpdate(ctx, tx, input.PaymentID)
		if err != nil {
			return err
		}
		if payment.Method != domain.MethodBlock {
			return domain.ErrNotBlockPayment
		}

		inv, err = c.invoices.FindForUpdate(ctx, tx, payment.InvoiceID)
		if err != nil {
			return err
		}

		refunded, err := c.payments.RefundedTotal(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if input.Amount > payment.Amount-refunded {
			return domain.ErrRefundAmount
		}

		consumed, err := c.blocks.ListForPaymentLock(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if int64(len(consumed)) < input.Amount {
			return domain.ErrRefundAmount
		}
		release := make([]snowflake.ID, 0, input.Amount)
		for _, block := range consumed[:input.Amount] {
			release = append(release, block.ID)
		}
		if err := c.blocks.Release(ctx, tx, release); err != nil {
			return err
		}

		refund = &domain.Refund{
			PaymentID: payment.ID,
			Amount:    input.Amount,
			Method:    string(domain.MethodBlock),
			Note:      input.Note,
		}
		if err := c.payments.InsertRefund(ctx, tx, refund); err != nil {
			return err
		}

		// The loaded payments predate this refund row; net it out in memory
		// before recomputing the invoice state.
		for i := range inv.Payments {
			if inv.Payments[i].ID == payment.ID {
				inv.Payments[i].Amount -= input.Amount
			}
		}
		for _, due := range inv.AmountDue() {
			if due > 0 {
				inv.Paid = false
				inv.Closed = false
				break
			}
		}
		if err := c.invoices.UpdateFlags(ctx, tx, inv); err != nil {
			return err
		}

		err = c.ledger.CreateEntry(ctx, tx, ledgerdomain.SourceTypeRefund, refund.ID, payment.Currency, c.clock.Now(), []ledgerdomain.LedgerEntryLine{
			{AccountCode: ledgerdomain.AccountCodeAccountsReceivable, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: refund.Amount},
			{AccountCode: ledgerdomain.AccountCodeBlockCredits, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: refund.Amount},
		})
		if err != nil {
			return err
		}

		if err := c.auditInvoice(ctx, inv, "payment.refund", map[string]any{
			"payment_id": payment.ID.String(),
			"refund_id":  refund.ID.String(),
			"amount":     refund.Amount,
		}); err != nil {
			return err
		}
		return c.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.EventRefundSettled,
			Payload: events.PaymentPayload{
				PaymentID: payment.ID.String(),
				InvoiceID: inv.ID.String(),
				Method:    string(payment.Method),
				Amount:    refund.Amount,
				Currency:  payment.Currency,
			}.ToMap(),
			DedupeKey: "refund_settled:" + refund.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	c.metrics.AddBlocksReleased(int(refund.Amount))
	c.summaries.Invalidate(inv.AccountID)
	return refund, nil
}

// postPayment writes the double-entry posting for a settled payment.
func (c *cashier) postPayment(ctx context.Context, tx *gorm.DB, payment *domain.Payment, debitAccount string) error {
	return c.ledger.CreateEntry(ctx, tx, ledgerdomain.SourceTypePayment, payment.ID, payment.Currency, c.clock.Now(), []ledgerdomain.LedgerEntryLine{
		{AccountCode: debitAccount, Direction: ledgerdomain.LedgerEntryDirectionDebit, Amount: payment.Amount},
		{AccountCode: ledgerdomain.AccountCodeAccountsReceivable, Direction: ledgerdomain.LedgerEntryDirectionCredit, Amount: payment.Amount},
	})
}

func (c *cashier) publishSettled(ctx context.Context, tx *gorm.DB, inv *invoicedomain.Invoice, payment *domain.Payment) error {
	err := c.outbox.PublishTx(ctx, tx, events.Event{
		Type: events.EventPaymentSettled,
		Payload: events.PaymentPayload{
			PaymentID: payment.ID.String(),
			InvoiceID: inv.ID.String(),
			Method:    string(payment.Method),
			Amount:    payment.Amount,
			Currency:  payment.Currency,
		}.ToMap(),
		DedupeKey: "payment_settled:" + payment.ID.String(),
	})
	if err != nil {
		return err
	}
	if !inv.Paid {
		return nil
	}
	return c.outbox.PublishTx(ctx, tx, events.Event{
		Type:      events.EventInvoicePaid,
		Payload:   events.InvoicePayload{InvoiceID: inv.ID.String()}.ToMap(),
		DedupeKey: "invoice_paid:" + inv.ID.String(),
	})
}

// afterPaid runs post-commit side effects for an invoice fully paid by
// charge. Block settlements never mint; only charge revenue buys new blocks.
// Minting failures are logged rather than unwinding an already settled
// payment.
func (c *cashier) afterPaid(ctx context.Context, inv *invoicedomain.Invoice) {
	if inv == nil || !inv.Paid {
		return
	}
	minted, err := c.generator.MintForInvoice(ctx, inv)
	if err != nil {
		c.log.Error("block minting failed",
			zap.String("invoice_id", inv.ID.String()),
			zap.Error(err),
		)
		return
	}
	if minted > 0 {
		c.summaries.Invalidate(inv.AccountID)
	}
}

func (c *cashier) auditInvoice(ctx context.Context, inv *invoicedomain.Invoice, action string, metadata map[string]any) error {
	targetID := inv.ID.String()
	if err := c.audit.AuditLog(ctx, auditdomain.ActorTypeSystem, action, "invoice", &targetID, metadata); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}
