package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics tracks settlement and block inventory activity.
type PaymentMetrics struct {
	paymentsSettled *prometheus.CounterVec
	paymentAmount   *prometheus.HistogramVec
	blocksMinted    prometheus.Counter
	blocksConsumed  prometheus.Counter
	blocksReleased  prometheus.Counter
}

var (
	paymentMetricsOnce sync.Once
	paymentMetrics     *PaymentMetrics
)

func Payment() *PaymentMetrics {
	return PaymentWithConfig(Config{})
}

func PaymentWithConfig(cfg Config) *PaymentMetrics {
	paymentMetricsOnce.Do(func() {
		paymentMetrics = newPaymentMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return paymentMetrics
}

func ResetPaymentMetricsForTest() {
	paymentMetricsOnce = sync.Once{}
	paymentMetrics = nil
}

func newPaymentMetrics(registerer prometheus.Registerer, cfg Config) *PaymentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "blockbill"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	paymentsSettled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "blockbill_payments_settled_total",
			Help:        "Total payment attempts by method and result.",
			ConstLabels: constLabels,
		},
		[]string{"method", "result"}, // charge|block, settled|failed
	)

	paymentAmount := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "blockbill_payment_amount_minor_units",
			Help:        "Settled payment amounts in currency minor units.",
			Buckets:     prometheus.ExponentialBuckets(100, 10, 6),
			ConstLabels: constLabels,
		},
		[]string{"currency"},
	)

	blocksMinted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "blockbill_blocks_minted_total",
			Help:        "Total block credits minted from paid invoices.",
			ConstLabels: constLabels,
		},
	)

	blocksConsumed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "blockbill_blocks_consumed_total",
			Help:        "Total block credits consumed by payments.",
			ConstLabels: constLabels,
		},
	)

	blocksReleased := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "blockbill_blocks_released_total",
			Help:        "Total block credits released by refunds.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		paymentsSettled,
		paymentAmount,
		blocksMinted,
		blocksConsumed,
		blocksReleased,
	)

	return &PaymentMetrics{
		paymentsSettled: paymentsSettled,
		paymentAmount:   paymentAmount,
		blocksMinted:    blocksMinted,
		blocksConsumed:  blocksConsumed,
		blocksReleased:  blocksReleased,
	}
}

func (m *PaymentMetrics) ObserveSettlement(method, currency string, amount int64) {
	if m == nil {
		return
	}
	m.paymentsSettled.WithLabelValues(method, "settled").Inc()
	m.paymentAmount.WithLabelValues(currency).Observe(float64(amount))
}

func (m *PaymentMetrics) ObserveFailure(method string) {
	if m == nil {
		return
	}
	m.paymentsSettled.WithLabelValues(method, "failed").Inc()
}

func (m *PaymentMetrics) AddBlocksMinted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.blocksMinted.Add(float64(count))
}

func (m *PaymentMetrics) AddBlocksConsumed(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.blocksConsumed.Add(float64(count))
}

func (m *PaymentMetrics) AddBlocksReleased(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.blocksReleased.Add(float64(count))
}
