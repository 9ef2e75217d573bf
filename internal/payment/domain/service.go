package domain

import "errors"

var (
	ErrGatewayNotFound = errors.New("gateway_not_found")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrInvalidCurrency = errors.New("invalid_currency")

	// Card failures, mapped from gateway decline codes.
	ErrCardDeclined   = errors.New("card_declined")
	ErrCardFraudulent = errors.New("card_fraudulent")
	ErrCardCVC        = errors.New("card_invalid_cvc")
	ErrCardExpired    = errors.New("card_expired")
	ErrCardProcessing = errors.New("card_processing_error")
	ErrChargeFailed   = errors.New("charge_failed")

	ErrBlockCountMismatch = errors.New("block_count_mismatch")

	ErrPaymentNotFound = errors.New("payment_not_found")
	ErrNotBlockPayment = errors.New("not_block_payment")
	ErrRefundAmount    = errors.New("refund_amount_exceeds_payment")
)
