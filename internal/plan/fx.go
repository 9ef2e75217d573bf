package plan

import (
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"github.com/smallbiznis/blockbill/internal/plan/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		fx.Annotate(
			repository.ProvideOwnerLoader,
			fx.As(new(lineitemdomain.OwnerLoader)),
			fx.ResultTags(`group:"lineable_loaders"`),
		),
	),
)
