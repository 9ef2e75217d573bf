package domain

import (
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	paymentdomain "github.com/smallbiznis/blockbill/internal/payment/domain"
)

func invoiceWithItems(t *testing.T, amounts map[string]int64) *Invoice {
	t.Helper()
	inv := &Invoice{ID: 1, AccountID: 10, AddressID: 20}
	for currency, amount := range amounts {
		inv.Items = append(inv.Items, lineitemdomain.LineItem{
			ID:       2,
			Amount:   amount,
			Quantity: decimal.NewFromInt(1),
			Currency: currency,
		})
	}
	return inv
}

func payment(invoiceID int64, amount int64, currency string) *paymentdomain.Payment {
	return &paymentdomain.Payment{
		ID:        99,
		InvoiceID: snowflake.ID(invoiceID),
		Method:    paymentdomain.MethodCharge,
		Amount:    amount,
		Currency:  currency,
	}
}

func TestApplyPaymentFullPaymentMarksPaidAndClosed(t *testing.T) {
	inv := invoiceWithItems(t, map[string]int64{"USD": 100})

	if err := inv.ApplyPayment(payment(1, 100, "USD")); err != nil {
		t.Fatalf("apply payment: %v", err)
	}
	if !inv.Paid || !inv.Closed {
		t.Fatalf("expected paid+closed, got paid=%v closed=%v", inv.Paid, inv.Closed)
	}
	if !inv.Attempted || inv.AttemptCount != 1 {
		t.Fatalf("expected one recorded attempt, got attempted=%v count=%d", inv.Attempted, inv.AttemptCount)
	}
}

func TestApplyPaymentPartialKeepsInvoiceOpen(t *testing.T) {
	inv := invoiceWithItems(t, map[string]int64{"USD": 100})

	if err := inv.ApplyPayment(payment(1, 40, "USD")); err != nil {
		t.Fatalf("apply payment: %v", err)
	}
	if inv.Paid || inv.Closed {
		t.Fatalf("expected open invoice, got paid=%v closed=%v", inv.Paid, inv.Closed)
	}
	if !inv.Attempted || inv.AttemptCount != 1 {
		t.Fatalf("expected attempt recorded, got attempted=%v count=%d", inv.Attempted, inv.AttemptCount)
	}
	if due := inv.AmountDue()["USD"]; due != 60 {
		t.Fatalf("expected remaining due 60, got %d", due)
	}
}

func TestApplyPaymentSplitAcrossCurrencies(t *testing.T) {
	inv := invoiceWithItems(t, map[string]int64{"USD": 5, "BLK": 3})

	if err := inv.ApplyPayment(payment(1, 5, "USD")); err != nil {
		t.Fatalf("apply usd payment: %v", err)
	}
	if inv.Paid {
		t.Fatal("expected invoice still open with BLK balance outstanding")
	}

	blockPayment := payment(1, 3, "BLK")
	blockPayment.Method = paymentdomain.MethodBlock
	if err := inv.ApplyPayment(blockPayment); err != nil {
		t.Fatalf("apply blk payment: %v", err)
	}
	if !inv.Paid || !inv.Closed {
		t.Fatal("expected invoice paid after both currencies settled")
	}
}

func TestApplyPaymentRejectsForeignInvoice(t *testing.T) {
	inv := invoiceWithItems(t, map[string]int64{"USD": 100})
	err := inv.ApplyPayment(payment(2, 100, "USD"))
	if !errors.Is(err, ErrPaymentInvoiceMismatch) {
		t.Fatalf("expected ErrPaymentInvoiceMismatch, got %v", err)
	}
}

func TestApplyPaymentRequiresItems(t *testing.T) {
	inv := &Invoice{ID: 1}
	err := inv.ApplyPayment(payment(1, 100, "USD"))
	if !errors.Is(err, ErrInvoiceItemsMissing) {
		t.Fatalf("expected ErrInvoiceItemsMissing, got %v", err)
	}
}

func TestApplyPaymentRejectsCurrencyNotOwed(t *testing.T) {
	inv := invoiceWithItems(t, map[string]int64{"USD": 100})
	err := inv.ApplyPayment(payment(1, 100, "EUR"))
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestApplyPaymentRejectsAlreadySettledCurrency(t *testing.T) {
	inv := invoiceWithItems(t, map[string]int64{"USD": 100, "BLK": 3})
	if err := inv.ApplyPayment(payment(1, 100, "USD")); err != nil {
		t.Fatalf("apply payment: %v", err)
	}
	err := inv.ApplyPayment(payment(1, 100, "USD"))
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch on settled currency, got %v", err)
	}
}

func TestRecordAttemptManualGuard(t *testing.T) {
	inv := &Invoice{}

	inv.RecordAttempt(AttemptManual)
	if inv.AttemptCount != 1 || !inv.Attempted {
		t.Fatalf("expected first manual attempt counted, got %d", inv.AttemptCount)
	}

	// A second manual attempt on top of exactly one is treated as already recorded.
	inv.RecordAttempt(AttemptManual)
	if inv.AttemptCount != 1 {
		t.Fatalf("expected manual dedupe at count 1, got %d", inv.AttemptCount)
	}

	inv.RecordAttempt(AttemptAuto)
	if inv.AttemptCount != 2 {
		t.Fatalf("expected auto attempt to increment, got %d", inv.AttemptCount)
	}

	inv.RecordAttempt(AttemptManual)
	if inv.AttemptCount != 3 {
		t.Fatalf("expected manual attempt past count 1 to increment, got %d", inv.AttemptCount)
	}
}

func TestMarkAsClosedIndependentOfPaid(t *testing.T) {
	inv := invoiceWithItems(t, map[string]int64{"USD": 100})
	inv.MarkAsClosed()
	if inv.Paid {
		t.Fatal("force-close must not mark the invoice paid")
	}
	if !inv.Closed {
		t.Fatal("expected invoice closed")
	}
}
