package service

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/blockbill/internal/account/domain"
	"github.com/smallbiznis/blockbill/internal/events"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/blockbill/internal/invoice/repository"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	lineitemrepo "github.com/smallbiznis/blockbill/internal/lineitem/repository"
	"github.com/smallbiznis/blockbill/internal/order/domain"
	"github.com/smallbiznis/blockbill/internal/order/repository"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db      *gorm.DB
	genID   *snowflake.Node
	orders  domain.Service
	account *accountdomain.Account
}

// newFixture wires the order mediator against a throwaway Postgres schema.
// The row-lock queries are Postgres syntax, so these tests need a real server.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := os.Getenv("BLOCKBILL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BLOCKBILL_TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	err = db.AutoMigrate(
		&accountdomain.Address{},
		&accountdomain.Account{},
		&domain.Order{},
		&invoicedomain.Invoice{},
		&lineitemdomain.LineItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = db.Exec(
		`CREATE TABLE IF NOT EXISTS order_invoices (
		   order_id BIGINT NOT NULL,
		   invoice_id BIGINT NOT NULL,
		   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		   PRIMARY KEY (order_id, invoice_id)
		 )`,
	).Error
	if err != nil {
		t.Fatalf("create order_invoices: %v", err)
	}
	err = db.Exec(
		`CREATE TABLE IF NOT EXISTS billing_events (
		   id BIGINT PRIMARY KEY,
		   event_type TEXT NOT NULL,
		   payload JSONB NOT NULL DEFAULT '{}',
		   dedupe_key TEXT UNIQUE,
		   published BOOLEAN NOT NULL DEFAULT FALSE,
		   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		 )`,
	).Error
	if err != nil {
		t.Fatalf("create billing_events: %v", err)
	}
	for _, table := range []string{
		"billing_events", "order_invoices", "line_items", "invoices",
		"orders", "accounts", "addresses",
	} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}

	genID, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	address := accountdomain.Address{
		ID:      genID.Generate(),
		Line1:   "1 Market Street",
		City:    "San Francisco",
		Country: "US",
	}
	if err := db.Create(&address).Error; err != nil {
		t.Fatalf("create address: %v", err)
	}
	account := accountdomain.Account{
		ID:        genID.Generate(),
		Email:     "client@example.com",
		Name:      "Client",
		AddressID: address.ID,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}

	items := lineitemrepo.Provide()
	orders := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    genID,
		Repo:     repository.Provide(items),
		Invoices: invoicerepo.Provide(items),
		Outbox:   events.NewOutbox(db, genID),
	})

	return &fixture{db: db, genID: genID, orders: orders, account: &account}
}

func (f *fixture) createOrder(t *testing.T) *domain.Order {
	t.Helper()

	order, err := f.orders.Create(context.Background(), f.account.ID, "rush order", []domain.NewOrderItem{
		{Amount: 1500, Currency: "usd", Quantity: "2", Description: "widgets"},
		{Amount: 1, Currency: "blk", Quantity: "5", Description: "block bundle"},
	})
	if err != nil {
		t.Fatalf("Create returned %v", err)
	}
	return order
}

func TestCreatePersistsOrderWithItems(t *testing.T) {
	f := newFixture(t)

	order := f.createOrder(t)
	if !order.IsDraft() {
		t.Fatalf("new order not draft: %v", order.State)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	for _, item := range order.Items {
		if item.ID == 0 || item.OwnerKind != lineitemdomain.OwnerOrder || item.OwnerID != order.ID {
			t.Fatalf("item not persisted under the order: %+v", item)
		}
	}

	loaded, err := f.orders.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Get returned %v", err)
	}
	if total := loaded.Total(); total["USD"] != 3000 || total["BLK"] != 5 {
		t.Fatalf("unexpected totals: %v", total)
	}
}

func TestCreateRejectsBadItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.orders.Create(ctx, f.account.ID, "", nil); !errors.Is(err, domain.ErrNoOrderItems) {
		t.Fatalf("empty items err = %v, want ErrNoOrderItems", err)
	}

	cases := []domain.NewOrderItem{
		{Amount: -5, Currency: "USD", Quantity: "1"},
		{Amount: 100, Currency: " ", Quantity: "1"},
		{Amount: 100, Currency: "USD", Quantity: "two"},
		{Amount: 100, Currency: "USD", Quantity: "-1"},
	}
	for _, item := range cases {
		if _, err := f.orders.Create(ctx, f.account.ID, "", []domain.NewOrderItem{item}); !errors.Is(err, domain.ErrInvalidItem) {
			t.Fatalf("item %+v err = %v, want ErrInvalidItem", item, err)
		}
	}
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	if _, err := f.orders.Reject(ctx, order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("reject of draft err = %v, want ErrInvalidState", err)
	}
	if _, err := f.orders.Approve(ctx, order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("approve of draft err = %v, want ErrInvalidState", err)
	}

	submitted, err := f.orders.Submit(ctx, order.ID)
	if err != nil || !submitted.IsPending() {
		t.Fatalf("Submit = %v, state %v", err, submitted.State)
	}
	if _, err := f.orders.Submit(ctx, order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second submit err = %v, want ErrInvalidState", err)
	}

	approved, err := f.orders.Approve(ctx, order.ID)
	if err != nil || !approved.IsApproved() {
		t.Fatalf("Approve = %v, state %v", err, approved.State)
	}
	if _, err := f.orders.Approve(ctx, order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second approve err = %v, want ErrInvalidState", err)
	}
}

func TestRejectPendingOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	if _, err := f.orders.Submit(ctx, order.ID); err != nil {
		t.Fatalf("Submit returned %v", err)
	}
	rejected, err := f.orders.Reject(ctx, order.ID)
	if err != nil || !rejected.IsRejected() {
		t.Fatalf("Reject = %v, state %v", err, rejected.State)
	}
	if _, err := f.orders.Approve(ctx, order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("approve of rejected err = %v, want ErrInvalidState", err)
	}
}

func TestInvoiceConvertsApprovedOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	if _, _, _, err := f.orders.Invoice(ctx, order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("invoice of draft err = %v, want ErrInvalidState", err)
	}

	if _, err := f.orders.Submit(ctx, order.ID); err != nil {
		t.Fatalf("Submit returned %v", err)
	}
	if _, err := f.orders.Approve(ctx, order.ID); err != nil {
		t.Fatalf("Approve returned %v", err)
	}

	invoiced, inv, items, err := f.orders.Invoice(ctx, order.ID)
	if err != nil {
		t.Fatalf("Invoice returned %v", err)
	}
	if !invoiced.IsInvoiced() {
		t.Fatalf("order not invoiced: %v", invoiced.State)
	}
	if inv.AccountID != f.account.ID || inv.AddressID != f.account.AddressID {
		t.Fatalf("invoice identity wrong: %+v", inv)
	}
	if len(items) != len(order.Items) {
		t.Fatalf("expected %d invoice items, got %d", len(order.Items), len(items))
	}
	for _, item := range items {
		if item.OwnerKind != lineitemdomain.OwnerInvoice || item.OwnerID != inv.ID {
			t.Fatalf("item not duplicated onto the invoice: %+v", item)
		}
	}

	var linked int64
	err = f.db.Raw(
		`SELECT COUNT(1) FROM order_invoices WHERE order_id = ? AND invoice_id = ?`,
		order.ID, inv.ID,
	).Scan(&linked).Error
	if err != nil || linked != 1 {
		t.Fatalf("order/invoice link missing: count %d, err %v", linked, err)
	}

	var published int64
	err = f.db.Raw(
		`SELECT COUNT(1) FROM billing_events WHERE event_type = ? AND dedupe_key = ?`,
		events.EventOrderInvoiced, "order_invoiced:"+order.ID.String(),
	).Scan(&published).Error
	if err != nil || published != 1 {
		t.Fatalf("order.invoiced event missing: count %d, err %v", published, err)
	}

	if _, _, _, err := f.orders.Invoice(ctx, order.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second invoice err = %v, want ErrInvalidState", err)
	}
}
