package payment

import (
	"github.com/smallbiznis/blockbill/internal/config"
	"github.com/smallbiznis/blockbill/internal/payment/adapters"
	"github.com/smallbiznis/blockbill/internal/payment/adapters/stripe"
	"github.com/smallbiznis/blockbill/internal/payment/domain"
	"github.com/smallbiznis/blockbill/internal/payment/repository"
	"github.com/smallbiznis/blockbill/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(adapters.NewRegistry),
	fx.Provide(
		fx.Annotate(
			newStripeGateway,
			fx.As(new(domain.ChargeGateway)),
			fx.ResultTags(`group:"charge_gateways"`),
		),
	),
	fx.Provide(service.NewCashier),
)

func newStripeGateway(cfg config.Config, log *zap.Logger) *stripe.Gateway {
	return stripe.New(cfg.StripeSecretKey, log)
}
