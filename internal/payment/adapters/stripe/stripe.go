package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	paymentdomain "github.com/smallbiznis/blockbill/internal/payment/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
)

const gatewayName = "stripe"

// Gateway charges cards through Stripe payment intents.
type Gateway struct {
	client *client.API
	log    *zap.Logger
}

// New constructs a Stripe gateway with its own API client. A shared global
// client would leak the key across tenants of the process.
func New(secretKey string, log *zap.Logger) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{client: api, log: log.Named("payment.stripe")}
}

// Name returns the registry key for this gateway.
func (g *Gateway) Name() string { return gatewayName }

// CreateCharge executes a synchronous charge and settles immediately.
func (g *Gateway) CreateCharge(ctx context.Context, req paymentdomain.ChargeRequest) (*paymentdomain.Charge, error) {
	if req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.Currency) == "" {
		return nil, paymentdomain.ErrInvalidCurrency
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod: stripe.String(req.Source),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	params.IdempotencyKey = stripe.String(key)

	if len(req.Metadata) > 0 {
		params.Metadata = make(map[string]string, len(req.Metadata))
		for k, v := range req.Metadata {
			params.Metadata[k] = v
		}
	}
	params.Context = ctx

	intent, err := g.client.PaymentIntents.New(params)
	if err != nil {
		mapped := mapError(err)
		g.log.Warn("stripe charge failed",
			zap.String("currency", req.Currency),
			zap.Int64("amount", req.Amount),
			zap.Error(mapped),
		)
		return nil, mapped
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return nil, fmt.Errorf("%w: intent status %s", paymentdomain.ErrChargeFailed, intent.Status)
	}

	return &paymentdomain.Charge{
		ID:      intent.ID,
		Gateway: gatewayName,
		Status:  string(intent.Status),
	}, nil
}

// mapError translates Stripe decline codes into domain sentinels so the
// stripe-go types never leak past this package.
func mapError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: %v", paymentdomain.ErrChargeFailed, err)
	}

	switch stripeErr.Code {
	case stripe.ErrorCodeCardDeclined:
		if stripeErr.DeclineCode == stripe.DeclineCodeFraudulent {
			return paymentdomain.ErrCardFraudulent
		}
		return paymentdomain.ErrCardDeclined
	case stripe.ErrorCodeIncorrectCVC:
		return paymentdomain.ErrCardCVC
	case stripe.ErrorCodeExpiredCard:
		return paymentdomain.ErrCardExpired
	case stripe.ErrorCodeProcessingError:
		return paymentdomain.ErrCardProcessing
	}
	return fmt.Errorf("%w: %s", paymentdomain.ErrChargeFailed, stripeErr.Code)
}
