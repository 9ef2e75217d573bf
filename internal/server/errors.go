package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/blockbill/internal/account/domain"
	auditdomain "github.com/smallbiznis/blockbill/internal/audit/domain"
	blockdomain "github.com/smallbiznis/blockbill/internal/block/domain"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/blockbill/internal/ledger/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	orderdomain "github.com/smallbiznis/blockbill/internal/order/domain"
	paymentdomain "github.com/smallbiznis/blockbill/internal/payment/domain"
)

// ErrNotFound is the catch-all for unknown routes and hidden resources.
var ErrNotFound = errors.New("not_found")

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *apiError) Error() string { return e.Code }

func invalidRequestError() *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Field:   field,
		Message: message,
	}
}

// AbortWithError maps domain sentinels onto HTTP statuses and renders the
// uniform error envelope.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := statusFor(err)
	body := gin.H{"error": gin.H{"code": err.Error()}}
	if status == http.StatusInternalServerError {
		body = gin.H{"error": gin.H{"code": "internal_error"}}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, accountdomain.ErrAccountNotFound),
		errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, lineitemdomain.ErrOwnerNotFound):
		return http.StatusNotFound

	case errors.Is(err, orderdomain.ErrInvalidState),
		errors.Is(err, invoicedomain.ErrInvoiceClosed):
		return http.StatusConflict

	case errors.Is(err, paymentdomain.ErrCardDeclined),
		errors.Is(err, paymentdomain.ErrCardFraudulent),
		errors.Is(err, paymentdomain.ErrCardCVC),
		errors.Is(err, paymentdomain.ErrCardExpired),
		errors.Is(err, paymentdomain.ErrCardProcessing),
		errors.Is(err, paymentdomain.ErrChargeFailed):
		return http.StatusPaymentRequired

	case errors.Is(err, invoicedomain.ErrCurrencyMismatch),
		errors.Is(err, invoicedomain.ErrInvoiceItemsMissing),
		errors.Is(err, invoicedomain.ErrPaymentInvoiceMismatch),
		errors.Is(err, blockdomain.ErrBlockOwnership),
		errors.Is(err, blockdomain.ErrBlockUnavailable),
		errors.Is(err, paymentdomain.ErrBlockCountMismatch),
		errors.Is(err, paymentdomain.ErrNotBlockPayment),
		errors.Is(err, paymentdomain.ErrRefundAmount),
		errors.Is(err, orderdomain.ErrNoOrderItems):
		return http.StatusUnprocessableEntity

	case errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidCurrency),
		errors.Is(err, orderdomain.ErrUnknownStatus),
		errors.Is(err, orderdomain.ErrInvalidItem),
		errors.Is(err, lineitemdomain.ErrUnknownOwnerKind),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidTarget),
		errors.Is(err, ledgerdomain.ErrInvalidCurrency):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
