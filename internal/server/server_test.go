package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/blockbill/internal/account/domain"
	accountrepo "github.com/smallbiznis/blockbill/internal/account/repository"
	auditrepo "github.com/smallbiznis/blockbill/internal/audit/repository"
	auditservice "github.com/smallbiznis/blockbill/internal/audit/service"
	blockdomain "github.com/smallbiznis/blockbill/internal/block/domain"
	blockrepo "github.com/smallbiznis/blockbill/internal/block/repository"
	blockservice "github.com/smallbiznis/blockbill/internal/block/service"
	"github.com/smallbiznis/blockbill/internal/clock"
	"github.com/smallbiznis/blockbill/internal/config"
	"github.com/smallbiznis/blockbill/internal/events"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/blockbill/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/blockbill/internal/invoice/service"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	lineitemrepo "github.com/smallbiznis/blockbill/internal/lineitem/repository"
	lineitemservice "github.com/smallbiznis/blockbill/internal/lineitem/service"
	orderdomain "github.com/smallbiznis/blockbill/internal/order/domain"
	orderrepo "github.com/smallbiznis/blockbill/internal/order/repository"
	orderservice "github.com/smallbiznis/blockbill/internal/order/service"
	paymentdomain "github.com/smallbiznis/blockbill/internal/payment/domain"
	paymentservice "github.com/smallbiznis/blockbill/internal/payment/service"
	plandomain "github.com/smallbiznis/blockbill/internal/plan/domain"
	planrepo "github.com/smallbiznis/blockbill/internal/plan/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubCashier struct {
	err error
}

func (s *stubCashier) PayByCharge(context.Context, paymentservice.ChargeInput) (*invoicedomain.Invoice, *paymentdomain.Payment, error) {
	return nil, nil, s.err
}

func (s *stubCashier) PayByBlock(context.Context, paymentservice.BlockInput) (*invoicedomain.Invoice, *paymentdomain.Payment, error) {
	return nil, nil, s.err
}

func (s *stubCashier) RefundByBlock(context.Context, paymentservice.RefundInput) (*paymentdomain.Refund, error) {
	return nil, s.err
}

type serverFixture struct {
	db       *gorm.DB
	genID    *snowflake.Node
	engine   *gin.Engine
	cashier  *stubCashier
	invoices *invoicerepo.Repository
}

// newServerFixture wires the HTTP surface over an in-memory sqlite database.
// Row-locked settlement paths stay out of these tests; the cashier is a stub.
func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&accountdomain.Address{},
		&accountdomain.Account{},
		&plandomain.Plan{},
		&orderdomain.Order{},
		&invoicedomain.Invoice{},
		&lineitemdomain.LineItem{},
		&paymentdomain.Payment{},
		&paymentdomain.Refund{},
		&blockdomain.Block{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY,
		actor_type TEXT NOT NULL,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`).Error; err != nil {
		t.Fatalf("create audit_logs: %v", err)
	}
	if err := db.Exec(`CREATE TABLE IF NOT EXISTS billing_events (
		id INTEGER PRIMARY KEY,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		dedupe_key TEXT UNIQUE,
		published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`).Error; err != nil {
		t.Fatalf("create billing_events: %v", err)
	}

	genID, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	log := zap.NewNop()
	cfg := config.Config{Environment: "test", BlockCurrency: "BLK"}
	clk := clock.NewSystem()

	items := lineitemrepo.Provide()
	invoices := invoicerepo.Provide(items)
	ordersRepo := orderrepo.Provide(items)
	outbox := events.NewOutbox(db, genID)

	orders := orderservice.NewService(orderservice.Params{
		DB: db, Log: log, GenID: genID, Repo: ordersRepo, Invoices: invoices, Outbox: outbox,
	})
	lineItems := lineitemservice.NewService(lineitemservice.Params{
		DB: db, Log: log, Repo: items,
		Loaders: []lineitemdomain.OwnerLoader{
			orderrepo.ProvideOwnerLoader(),
			invoicerepo.ProvideOwnerLoader(),
			planrepo.ProvideOwnerLoader(),
		},
	})
	blocks := blockservice.NewService(blockservice.Params{
		DB: db, Log: log, Repo: blockrepo.Provide(), Clock: clk,
	})
	cashier := &stubCashier{}

	srv := NewServer(Params{
		Config:    cfg,
		Log:       log,
		DB:        db,
		Orders:    orders,
		Invoices:  newInvoiceService(t, db, log, invoices, genID),
		LineItems: lineItems,
		Cashier:   cashier,
		Blocks:    blocks,
		Accounts:  accountrepo.Provide(),
		AuditRepo: auditrepo.Provide(),
	})

	engine := gin.New()
	srv.RegisterAPIRoutes(engine)

	return &serverFixture{
		db:       db,
		genID:    genID,
		engine:   engine,
		cashier:  cashier,
		invoices: invoices,
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return envelope.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error %q: %v", rec.Body.String(), err)
	}
	return envelope.Error.Code
}

func (f *serverFixture) createAccount(t *testing.T) *accountdomain.Account {
	t.Helper()

	address := accountdomain.Address{
		ID:      f.genID.Generate(),
		Line1:   "1 Market Street",
		City:    "San Francisco",
		Country: "US",
	}
	if err := f.db.Create(&address).Error; err != nil {
		t.Fatalf("create address: %v", err)
	}
	account := accountdomain.Account{
		ID:        f.genID.Generate(),
		Email:     "client@example.com",
		Name:      "Client",
		AddressID: address.ID,
		Address:   &address,
	}
	if err := f.db.Omit("Address").Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return &account
}

func TestCreateAndGetOrder(t *testing.T) {
	f := newServerFixture(t)
	account := f.createAccount(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"account_id": account.ID.String(),
		"note":       "rush",
		"items": []gin.H{
			{"amount": 1500, "currency": "usd", "quantity": "2", "description": "widgets"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order status %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	orderID, _ := data["id"].(string)
	if orderID == "" {
		t.Fatalf("created order has no id: %v", data)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get order status %d: %s", rec.Code, rec.Body.String())
	}
	if state := decodeData(t, rec)["state"]; state != float64(orderdomain.StatusDraft) {
		t.Fatalf("order state = %v, want draft", state)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/orders/not-a-number", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id status %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/orders/"+f.genID.Generate().String(), nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "order_not_found" {
		t.Fatalf("missing order: status %d, code %s", rec.Code, errorCode(t, rec))
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	f := newServerFixture(t)
	account := f.createAccount(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"account_id": account.ID.String(),
		"items":      []gin.H{},
	})
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "order_items_missing" {
		t.Fatalf("empty items: status %d, code %s", rec.Code, errorCode(t, rec))
	}
}

func TestGetAccount(t *testing.T) {
	f := newServerFixture(t)
	account := f.createAccount(t)

	rec := f.do(t, http.MethodGet, "/api/v1/accounts/"+account.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get account status %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["email"] != account.Email {
		t.Fatalf("account email = %v", data["email"])
	}
	if data["address"] == nil {
		t.Fatal("account address not loaded")
	}

	rec = f.do(t, http.MethodGet, "/api/v1/accounts/"+f.genID.Generate().String(), nil)
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != "account_not_found" {
		t.Fatalf("missing account: status %d, code %s", rec.Code, errorCode(t, rec))
	}
}

func TestBlockSummaryEndpoint(t *testing.T) {
	f := newServerFixture(t)
	account := f.createAccount(t)

	paymentID := f.genID.Generate()
	rows := []blockdomain.Block{
		{ID: f.genID.Generate(), AccountID: account.ID},
		{ID: f.genID.Generate(), AccountID: account.ID},
		{ID: f.genID.Generate(), AccountID: account.ID, PaymentID: &paymentID},
	}
	if err := f.db.Create(&rows).Error; err != nil {
		t.Fatalf("insert blocks: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/accounts/"+account.ID.String()+"/blocks/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	if data["available"] != float64(2) || data["exhausted"] != float64(1) {
		t.Fatalf("summary = %v, want 2 available / 1 exhausted", data)
	}
}

func TestListLineItemsEndpoint(t *testing.T) {
	f := newServerFixture(t)
	account := f.createAccount(t)

	rec := f.do(t, http.MethodPost, "/api/v1/orders", gin.H{
		"account_id": account.ID.String(),
		"items": []gin.H{
			{"amount": 100, "currency": "USD", "quantity": "1"},
			{"amount": 1, "currency": "BLK", "quantity": "3"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order status %d", rec.Code)
	}
	orderID, _ := decodeData(t, rec)["id"].(string)

	rec = f.do(t, http.MethodGet, "/api/v1/line-items?owner_kind=order&owner_id="+orderID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list line items status %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 2 {
		t.Fatalf("listed %d items, want 2", len(envelope.Data))
	}

	rec = f.do(t, http.MethodGet, "/api/v1/line-items?owner_kind=order", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing owner_id status %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/line-items?owner_kind=basket&owner_id="+orderID, nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "unknown_owner_kind" {
		t.Fatalf("unknown kind: status %d, code %s", rec.Code, errorCode(t, rec))
	}
}

func TestInvoiceReadEndpoints(t *testing.T) {
	f := newServerFixture(t)
	account := f.createAccount(t)

	inv := &invoicedomain.Invoice{
		ID:        f.genID.Generate(),
		AccountID: account.ID,
		AddressID: account.AddressID,
	}
	inv.Items = []lineitemdomain.LineItem{{
		OwnerKind: lineitemdomain.OwnerInvoice,
		OwnerID:   inv.ID,
		Amount:    750,
		Currency:  "USD",
		Quantity:  decimal.NewFromInt(2),
	}}
	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.invoices.Insert(context.Background(), tx, f.genID, inv)
	})
	if err != nil {
		t.Fatalf("insert invoice: %v", err)
	}

	rec := f.do(t, http.MethodGet, "/api/v1/invoices/"+inv.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get invoice status %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeData(t, rec)
	due, _ := data["amount_due"].(map[string]any)
	if due["USD"] != float64(1500) {
		t.Fatalf("amount due = %v, want USD 1500", due)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/invoices?account_id="+account.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list invoices status %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("listed %d invoices, want 1", len(envelope.Data))
	}
}

func TestChargeErrorStatusMapping(t *testing.T) {
	f := newServerFixture(t)
	f.cashier.err = paymentdomain.ErrCardDeclined
	invoiceID := f.genID.Generate().String()

	rec := f.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/payments/charge", gin.H{
		"currency": "USD",
		"source":   "pm_card",
	})
	if rec.Code != http.StatusPaymentRequired || errorCode(t, rec) != "card_declined" {
		t.Fatalf("declined charge: status %d, code %s", rec.Code, errorCode(t, rec))
	}

	f.cashier.err = invoicedomain.ErrInvoiceClosed
	rec = f.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/payments/charge", gin.H{
		"currency": "USD",
		"source":   "pm_card",
	})
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "invoice_closed" {
		t.Fatalf("closed invoice: status %d, code %s", rec.Code, errorCode(t, rec))
	}
}

func TestChargeRateLimit(t *testing.T) {
	f := newServerFixture(t)
	f.cashier.err = paymentdomain.ErrCardDeclined
	invoiceID := f.genID.Generate().String()

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = f.do(t, http.MethodPost, "/api/v1/invoices/"+invoiceID+"/payments/charge", gin.H{
			"currency": "USD",
			"source":   "pm_card",
		})
	}
	if last.Code != http.StatusTooManyRequests || errorCode(t, last) != "too_many_attempts" {
		t.Fatalf("11th attempt: status %d, code %s", last.Code, errorCode(t, last))
	}
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d: %s", rec.Code, rec.Body.String())
	}
}

func newInvoiceService(t *testing.T, db *gorm.DB, log *zap.Logger, repo *invoicerepo.Repository, genID *snowflake.Node) invoicedomain.Service {
	t.Helper()
	return invoiceservice.NewService(invoiceservice.Params{
		DB:   db,
		Log:  log,
		Repo: repo,
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB: db, Log: log, GenID: genID, Repo: auditrepo.Provide(),
		}),
	})
}
