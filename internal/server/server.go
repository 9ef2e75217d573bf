package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accountrepo "github.com/smallbiznis/blockbill/internal/account/repository"
	auditdomain "github.com/smallbiznis/blockbill/internal/audit/domain"
	blockservice "github.com/smallbiznis/blockbill/internal/block/service"
	"github.com/smallbiznis/blockbill/internal/config"
	invoicedomain "github.com/smallbiznis/blockbill/internal/invoice/domain"
	lineitemdomain "github.com/smallbiznis/blockbill/internal/lineitem/domain"
	"github.com/smallbiznis/blockbill/internal/observability/logger"
	"github.com/smallbiznis/blockbill/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/blockbill/internal/order/domain"
	paymentservice "github.com/smallbiznis/blockbill/internal/payment/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	Orders    orderdomain.Service
	Invoices  invoicedomain.Service
	LineItems lineitemdomain.Service
	Cashier   paymentservice.Cashier
	Blocks    *blockservice.Service
	Accounts  *accountrepo.Repository
	AuditRepo auditdomain.Repository
}

// Server carries the HTTP handlers and their dependencies.
type Server struct {
	cfg       config.Config
	log       *zap.Logger
	db        *gorm.DB
	orders    orderdomain.Service
	invoices  invoicedomain.Service
	lineItems lineitemdomain.Service
	cashier   paymentservice.Cashier
	blocks    *blockservice.Service
	accounts  *accountrepo.Repository
	auditRepo auditdomain.Repository

	// Charges hit an external processor; cap per-invoice attempts so a
	// misbehaving client cannot hammer the gateway.
	chargeLimiter *rateLimiter
}

// NewServer constructs the HTTP server.
func NewServer(p Params) *Server {
	return &Server{
		cfg:           p.Config,
		log:           p.Log.Named("server"),
		db:            p.DB,
		orders:        p.Orders,
		invoices:      p.Invoices,
		lineItems:     p.LineItems,
		cashier:       p.Cashier,
		blocks:        p.Blocks,
		accounts:      p.Accounts,
		auditRepo:     p.AuditRepo,
		chargeLimiter: newRateLimiter(10, time.Minute),
	}
}

// NewEngine builds the gin engine with logging and metrics middleware.
func NewEngine(cfg config.Config, log *zap.Logger, httpMetrics *metrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Logger:    log,
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(metrics.GinMiddleware(httpMetrics))
	return engine
}

// RegisterAPIRoutes mounts every endpoint on the engine.
func (s *Server) RegisterAPIRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")

	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/submit", s.SubmitOrder)
	api.POST("/orders/:id/reject", s.RejectOrder)
	api.POST("/orders/:id/approve", s.ApproveOrder)
	api.POST("/orders/:id/invoice", s.InvoiceOrder)

	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoice)
	api.POST("/invoices/:id/close", s.CloseInvoice)
	api.POST("/invoices/:id/payments/charge", s.PayInvoiceByCharge)
	api.POST("/invoices/:id/payments/blocks", s.PayInvoiceByBlocks)

	api.POST("/payments/:id/refund", s.RefundPayment)

	api.GET("/accounts/:id", s.GetAccount)
	api.GET("/accounts/:id/blocks/summary", s.BlockSummary)

	api.GET("/line-items", s.ListLineItems)
	api.GET("/audit-logs", s.ListAuditLogs)
}

// Healthz reports process liveness and database reachability.
func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down http server")
			return srv.Shutdown(ctx)
		},
	})
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	if raw == "" {
		return 0, newValidationError(name, "required", name+" is required")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(name, "invalid_id", name+" is not a valid id")
	}
	return id, nil
}

func parseRequestID(raw, field string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, newValidationError(field, "required", field+" is required")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(field, "invalid_id", field+" is not a valid id")
	}
	return id, nil
}

func parseIDQuery(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(name, "invalid_id", name+" is not a valid id")
	}
	return id, nil
}
