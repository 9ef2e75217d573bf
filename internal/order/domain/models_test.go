package domain

import (
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/blockbill/internal/account/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		label   string
		want    Status
		wantErr bool
	}{
		{label: "Draft", want: StatusDraft},
		{label: "pending", want: StatusPending},
		{label: "  REJECTED ", want: StatusRejected},
		{label: "Approved", want: StatusApproved},
		{label: "partial", want: StatusPartial},
		{label: "Invoiced", want: StatusInvoiced},
		{label: "cancelled", wantErr: true},
		{label: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.label)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownStatus) {
				t.Fatalf("ParseStatus(%q) err = %v, want ErrUnknownStatus", tc.label, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseStatus(%q) returned %v", tc.label, err)
		}
		if got != tc.want {
			t.Fatalf("ParseStatus(%q) = %v, want %v", tc.label, got, tc.want)
		}
	}
}

func TestStatusLabelRoundTrip(t *testing.T) {
	for s := StatusDraft; s <= StatusInvoiced; s++ {
		label := s.Label()
		if label == "" {
			t.Fatalf("status %d has no label", s)
		}
		parsed, err := ParseStatus(label)
		if err != nil || parsed != s {
			t.Fatalf("round trip of %q: got %v, %v", label, parsed, err)
		}
	}
	if Status(99).Label() != "" {
		t.Fatal("out-of-range status should have empty label")
	}
}

func TestSetStatusRejectsUnknownLabel(t *testing.T) {
	order := &Order{State: StatusDraft}
	if err := order.SetStatus("bogus"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("SetStatus err = %v, want ErrUnknownStatus", err)
	}
	if order.State != StatusDraft {
		t.Fatalf("state mutated on failed SetStatus: %v", order.State)
	}
	if err := order.SetStatus("approved"); err != nil || !order.IsApproved() {
		t.Fatalf("SetStatus(approved) = %v, state %v", err, order.State)
	}
}

func TestToInvoiceDuplicatesItems(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	address := &accountdomain.Address{ID: node.Generate()}
	account := &accountdomain.Account{ID: node.Generate(), AddressID: address.ID, Address: address}
	order := &Order{
		ID:        node.Generate(),
		AccountID: account.ID,
		State:     StatusApproved,
		Account:   account,
	}
	order.Items = []lineitemdomain.LineItem{
		{
			ID:          node.Generate(),
			OwnerKind:   lineitemdomain.OwnerOrder,
			OwnerID:     order.ID,
			Amount:      1200,
			Currency:    "usd",
			Quantity:    decimal.NewFromInt(2),
			Description: "widgets",
		},
		{
			ID:        node.Generate(),
			OwnerKind: lineitemdomain.OwnerOrder,
			OwnerID:   order.ID,
			Amount:    1,
			Currency:  "BLK",
			Quantity:  decimal.NewFromInt(5),
		},
	}

	inv, err := order.ToInvoice(node)
	if err != nil {
		t.Fatalf("ToInvoice returned %v", err)
	}
	if inv.AccountID != account.ID || inv.AddressID != address.ID {
		t.Fatalf("invoice identity not taken from account: %+v", inv)
	}
	if len(inv.Items) != len(order.Items) {
		t.Fatalf("expected %d items, got %d", len(order.Items), len(inv.Items))
	}
	for i, item := range inv.Items {
		source := order.Items[i]
		if item.ID == 0 || item.ID == source.ID {
			t.Fatalf("item %d was not assigned a fresh identity", i)
		}
		if item.OwnerKind != lineitemdomain.OwnerInvoice || item.OwnerID != inv.ID {
			t.Fatalf("item %d not owned by the invoice: %+v", i, item)
		}
		if item.Amount != source.Amount || !item.Quantity.Equal(source.Quantity) {
			t.Fatalf("item %d monetary fields diverged: %+v", i, item)
		}
		if item.Currency != lineitemdomain.NormalizeCurrency(source.Currency) {
			t.Fatalf("item %d currency not normalized: %q", i, item.Currency)
		}
	}
}

func TestToInvoiceRequiresLoadedRelations(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	address := &accountdomain.Address{ID: node.Generate()}
	account := &accountdomain.Account{ID: node.Generate(), AddressID: address.ID, Address: address}
	item := lineitemdomain.LineItem{Amount: 100, Currency: "USD", Quantity: decimal.NewFromInt(1)}

	cases := []struct {
		name  string
		order *Order
	}{
		{name: "missing account", order: &Order{ID: node.Generate(), Items: []lineitemdomain.LineItem{item}}},
		{name: "missing address", order: &Order{ID: node.Generate(), Account: &accountdomain.Account{ID: account.ID}, Items: []lineitemdomain.LineItem{item}}},
		{name: "no items", order: &Order{ID: node.Generate(), Account: account}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.order.ToInvoice(node); !errors.Is(err, ErrRelationNotLoaded) {
				t.Fatalf("ToInvoice err = %v, want ErrRelationNotLoaded", err)
			}
		})
	}
}

func TestOrderTotalGroupsByCurrency(t *testing.T) {
	order := &Order{Items: []lineitemdomain.LineItem{
		{Amount: 1000, Currency: "USD", Quantity: decimal.NewFromInt(2)},
		{Amount: 250, Currency: "USD", Quantity: decimal.NewFromInt(1)},
		{Amount: 1, Currency: "BLK", Quantity: decimal.NewFromInt(7)},
	}}
	total := order.Total()
	if total["USD"] != 2250 || total["BLK"] != 7 {
		t.Fatalf("unexpected totals: %v", total)
	}
}
