package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/blockbill/internal/events"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/blockbill/internal/invoice/repository"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"github.com/smallbiznis/blockbill/internal/order/domain"
	"github.com/smallbiznis/blockbill/internal/order/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     *repository.Repository
	Invoices *invoicerepo.Repository
	Outbox   *events.Outbox
}

// Service mediates order lifecycle transitions. It owns no state beyond its
// collaborators; every operation runs inside one row-locked transaction.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     *repository.Repository
	invoices *invoicerepo.Repository
	outbox   *events.Outbox
}

// NewService builds the order mediator.
func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("order.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		invoices: p.Invoices,
		outbox:   p.Outbox,
	}
}

func (s *Service) Create(ctx context.Context, accountID snowflake.ID, note string, items []domain.NewOrderItem) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.ErrNoOrderItems
	}

	order := &domain.Order{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		State:     domain.StatusDraft,
		Note:      strings.TrimSpace(note),
	}
	for _, item := range items {
		if item.Amount < 0 || strings.TrimSpace(item.Currency) == "" {
			return nil, domain.ErrInvalidItem
		}
		quantity, err := decimal.NewFromString(strings.TrimSpace(item.Quantity))
		if err != nil || quantity.IsNegative() {
			return nil, domain.ErrInvalidItem
		}
		order.Items = append(order.Items, lineitemdomain.LineItem{
			OwnerKind:   lineitemdomain.OwnerOrder,
			OwnerID:     order.ID,
			Amount:      item.Amount,
			Currency:    lineitemdomain.NormalizeCurrency(item.Currency),
			Quantity:    quantity,
			Description: strings.TrimSpace(item.Description),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Insert(ctx, tx, s.genID, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	return s.repo.Find(ctx, s.db, id)
}

// Submit moves a draft order into the pending queue.
func (s *Service) Submit(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	return s.transition(ctx, id, func(order *domain.Order) error {
		if !order.IsDraft() {
			return domain.ErrInvalidState
		}
		order.State = domain.StatusPending
		return nil
	})
}

// Reject declines a pending order.
func (s *Service) Reject(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	return s.transition(ctx, id, func(order *domain.Order) error {
		if !order.IsPending() {
			return domain.ErrInvalidState
		}
		order.State = domain.StatusRejected
		return nil
	})
}

// Approve accepts an order for invoicing. Draft orders, orders without
// items, and orders already approved or invoiced are rejected.
func (s *Service) Approve(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	return s.transition(ctx, id, func(order *domain.Order) error {
		if order.IsDraft() || len(order.Items) == 0 || order.IsApproved() || order.IsInvoiced() {
			return domain.ErrInvalidState
		}
		order.State = domain.StatusApproved
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, apply func(*domain.Order) error) (*domain.Order, error) {
	var order *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(loaded); err != nil {
			return err
		}
		if err := s.repo.UpdateState(ctx, tx, loaded); err != nil {
			return err
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Invoice converts an approved order into a persisted invoice. Marking the
// order invoiced, inserting the invoice with its duplicated items and
// linking the two commit together or not at all.
func (s *Service) Invoice(ctx context.Context, id snowflake.ID) (*domain.Order, *invoicedomain.Invoice, []lineitemdomain.LineItem, error) {
	var (
		order *domain.Order
		inv   *invoicedomain.Invoice
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !loaded.IsApproved() || len(loaded.Items) == 0 {
			return domain.ErrInvalidState
		}

		converted, err := loaded.ToInvoice(s.genID)
		if err != nil {
			return err
		}

		loaded.State = domain.StatusInvoiced
		if err := s.repo.UpdateState(ctx, tx, loaded); err != nil {
			return err
		}
		if err := s.invoices.Insert(ctx, tx, s.genID, converted); err != nil {
			return err
		}
		if err := s.repo.LinkInvoice(ctx, tx, loaded.ID, converted.ID); err != nil {
			return err
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventOrderInvoiced,
			Payload:   events.InvoicePayload{InvoiceID: converted.ID.String(), OrderID: loaded.ID.String()}.ToMap(),
			DedupeKey: "order_invoiced:" + loaded.ID.String(),
		}); err != nil {
			return err
		}

		order = loaded
		inv = converted
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	s.log.Info("order invoiced",
		zap.String("order_id", order.ID.String()),
		zap.String("invoice_id", inv.ID.String()),
	)
	return order, inv, inv.Items, nil
}
