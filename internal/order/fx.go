package order

import (
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"github.com/smallbiznis/blockbill/internal/order/repository"
	"github.com/smallbiznis/blockbill/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(
		fx.Annotate(
			repository.ProvideOwnerLoader,
			fx.As(new(lineitemdomain.OwnerLoader)),
			fx.ResultTags(`group:"lineable_loaders"`),
		),
	),
)
