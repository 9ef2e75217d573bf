package events

// Billing event types published through the outbox.
const (
	EventOrderInvoiced  = "order.invoiced"
	EventInvoicePaid    = "invoice.paid"
	EventPaymentSettled = "payment.settled"
	EventRefundSettled  = "refund.settled"
	EventBlocksMinted   = "blocks.minted"
)

// InvoicePayload captures the minimal data needed to react to invoice events.
type InvoicePayload struct {
	InvoiceID string `json:"invoice_id"`
	OrderID   string `json:"order_id,omitempty"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p InvoicePayload) ToMap() map[string]any {
	payload := map[string]any{"invoice_id": p.InvoiceID}
	if p.OrderID != "" {
		payload["order_id"] = p.OrderID
	}
	return payload
}

// PaymentPayload captures the minimal data needed to react to payment events.
type PaymentPayload struct {
	PaymentID string `json:"payment_id"`
	InvoiceID string `json:"invoice_id"`
	Method    string `json:"method"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	return map[string]any{
		"payment_id": p.PaymentID,
		"invoice_id": p.InvoiceID,
		"method":     p.Method,
		"amount":     p.Amount,
		"currency":   p.Currency,
	}
}

// BlocksPayload captures a block-minting event.
type BlocksPayload struct {
	AccountID string `json:"account_id"`
	InvoiceID string `json:"invoice_id"`
	Count     int    `json:"count"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p BlocksPayload) ToMap() map[string]any {
	return map[string]any{
		"account_id": p.AccountID,
		"invoice_id": p.InvoiceID,
		"count":      p.Count,
	}
}
