package invoice

import (
	"github.com/smallbiznis/blockbill/internal/invoice/repository"
	"github.com/smallbiznis/blockbill/internal/invoice/service"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
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
