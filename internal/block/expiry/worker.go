package expiry

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/blockbill/internal/block/repository"
	"github.com/smallbiznis/blockbill/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   *repository.Repository
	Clock  clock.Clock
	Config Config `optional:"true"`
}

// Worker retires expired, unspent blocks in batches so availability queries
// stay cheap. SKIP LOCKED keeps concurrent workers from contending.
type Worker struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  *repository.Repository
	clock clock.Clock
	cfg   Config
}

func NewWorker(p Params) *Worker {
	cfg := p.Config.withDefaults()
	return &Worker{
		db:    p.DB,
		log:   p.Log.Named("block.expiry"),
		repo:  p.Repo,
		clock: p.Clock,
		cfg:   cfg,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("block expiry run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	if w.db == nil || w.repo == nil {
		return errors.New("expiry_worker_unavailable")
	}

	now := w.clock.Now()
	for {
		var retired int64
		err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			retired, err = w.repo.ExpireBatch(ctx, tx, now, w.cfg.BatchSize)
			return err
		})
		if err != nil {
			return err
		}
		if retired > 0 {
			w.log.Info("expired blocks retired", zap.Int64("count", retired))
		}
		if retired < int64(w.cfg.BatchSize) {
			return nil
		}
	}
}
