package adapters

import (
	"strings"

	"github.com/smallbiznis/blockbill/internal/payment/domain"
	"go.uber.org/fx"
)

type RegistryParams struct {
	fx.In

	Gateways []domain.ChargeGateway `group:"charge_gateways"`
}

// Registry resolves charge gateways by name.
type Registry struct {
	gateways map[string]domain.ChargeGateway
}

// NewRegistry indexes the provided gateways.
func NewRegistry(p RegistryParams) *Registry {
	gateways := make(map[string]domain.ChargeGateway, len(p.Gateways))
	for _, gateway := range p.Gateways {
		if gateway == nil {
			continue
		}
		gateways[strings.ToLower(gateway.Name())] = gateway
	}
	return &Registry{gateways: gateways}
}

// Gateway returns the gateway registered under name.
func (r *Registry) Gateway(name string) (domain.ChargeGateway, error) {
	gateway, ok := r.gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, domain.ErrGatewayNotFound
	}
	return gateway, nil
}
