package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/blockbill/internal/audit/domain"
	"github.com/smallbiznis/blockbill/internal/invoice/domain"
	"github.com/smallbiznis/blockbill/internal/invoice/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     *repository.Repository
	AuditSvc auditdomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     *repository.Repository
	auditSvc auditdomain.Service
}

// NewService builds the invoice query/transition service.
func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context, accountID snowflake.ID) ([]domain.Invoice, error) {
	return s.repo.ListByAccount(ctx, s.db, accountID)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	return s.repo.Find(ctx, s.db, id)
}

// ForceClose closes an open invoice without payment.
func (s *Service) ForceClose(ctx context.Context, id snowflake.ID, note string) (*domain.Invoice, error) {
	var closed *domain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if inv.Closed {
			return domain.ErrInvoiceClosed
		}

		inv.MarkAsClosed()
		if note = strings.TrimSpace(note); note != "" {
			inv.Note = note
		}
		if err := s.repo.UpdateFlags(ctx, tx, inv); err != nil {
			return err
		}
		closed = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	targetID := closed.ID.String()
	if err := s.auditSvc.AuditLog(ctx, auditdomain.ActorTypeUser, "invoice.closed", "invoice", &targetID, map[string]any{
		"paid": closed.Paid,
		"note": closed.Note,
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("invoice_id", targetID), zap.Error(err))
	}
	return closed, nil
}
