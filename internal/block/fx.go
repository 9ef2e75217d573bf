package block

import (
	"context"

	"github.com/smallbiznis/blockbill/internal/block/expiry"
	"github.com/smallbiznis/blockbill/internal/block/generator"
	"github.com/smallbiznis/blockbill/internal/block/repository"
	"github.com/smallbiznis/blockbill/internal/block/service"
	"go.uber.org/fx"
)

var Module = fx.Module("block.service",
	fx.Provide(repository.Provide),
	fx.Provide(generator.NewGenerator),
	fx.Provide(service.NewService),
	fx.Provide(expiry.DefaultConfig),
	fx.Provide(expiry.NewWorker),
	fx.Invoke(runExpiryWorker),
)

func runExpiryWorker(lc fx.Lifecycle, worker *expiry.Worker) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
