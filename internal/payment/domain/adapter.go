package domain

import "context"

// ChargeRequest describes a card charge handed to an external gateway.
type ChargeRequest struct {
	Amount      int64
	Currency    string
	Source      string
	Description string
	// IdempotencyKey guards against double-charging on retries. Adapters
	// generate one when the caller leaves it empty.
	IdempotencyKey string
	Metadata       map[string]string
}

// Charge is the gateway's record of a settled card charge.
type Charge struct {
	ID      string
	Gateway string
	Status  string
}

// ChargeGateway abstracts the external card processor.
type ChargeGateway interface {
	Name() string
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
}
