package observability

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics tracks purchases, claims and rejected calls of the sale runtime.
type SaleMetrics struct {
	calls       *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	purchases   *prometheus.CounterVec
	tokensSold  *prometheus.CounterVec
	raised      *prometheus.CounterVec
	claims      prometheus.Counter
	claimed     prometheus.Counter
	remaining   prometheus.Gauge
	subscribers prometheus.Gauge
}

var (
	saleMetricsOnce sync.Once
	saleRegistry    *SaleMetrics
)

// Sale returns the lazily-initialised sale metrics registered with the
// default Prometheus registry.
func Sale() *SaleMetrics {
	saleMetricsOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crybsale",
				Subsystem: "runtime",
				Name:      "calls_total",
				Help:      "Total sale runtime calls segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crybsale",
				Subsystem: "runtime",
				Name:      "rejections_total",
				Help:      "Calls reverted by the engine segmented by operation and error kind.",
			}, []string{"operation", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "crybsale",
				Subsystem: "runtime",
				Name:      "call_duration_seconds",
				Help:      "Latency distribution for sale runtime calls including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crybsale",
				Subsystem: "sale",
				Name:      "purchases_total",
				Help:      "Accepted purchases segmented by phase.",
			}, []string{"phase"}),
			tokensSold: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crybsale",
				Subsystem: "sale",
				Name:      "tokens_sold_total",
				Help:      "Tokens sold in base units segmented by phase.",
			}, []string{"phase"}),
			raised: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crybsale",
				Subsystem: "sale",
				Name:      "currency_raised_total",
				Help:      "Currency raised in base units segmented by phase.",
			}, []string{"phase"}),
			claims: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "crybsale",
				Subsystem: "vesting",
				Name:      "claims_total",
				Help:      "Vesting releases that delivered tokens.",
			}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "crybsale",
				Subsystem: "vesting",
				Name:      "claimed_tokens_total",
				Help:      "Tokens delivered by vesting releases in base units.",
			}),
			remaining: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "crybsale",
				Subsystem: "sale",
				Name:      "remaining_tokens",
				Help:      "Unsold inventory still withdrawable by the treasury.",
			}),
			subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "crybsale",
				Subsystem: "events",
				Name:      "subscribers",
				Help:      "Active event stream subscribers.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.calls,
			saleRegistry.rejections,
			saleRegistry.latency,
			saleRegistry.purchases,
			saleRegistry.tokensSold,
			saleRegistry.raised,
			saleRegistry.claims,
			saleRegistry.claimed,
			saleRegistry.remaining,
			saleRegistry.subscribers,
		)
	})
	return saleRegistry
}

// ObserveCall records the outcome of a runtime call. kind is empty on success.
func (m *SaleMetrics) ObserveCall(operation, kind string, duration time.Duration) {
	if m == nil {
		return
	}
	operation = normalizeLabel(operation)
	outcome := "success"
	if kind != "" {
		outcome = "error"
		m.rejections.WithLabelValues(operation, kind).Inc()
	}
	m.calls.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordPurchase tracks an accepted purchase.
func (m *SaleMetrics) RecordPurchase(phase string, currency, tokens *big.Int) {
	if m == nil {
		return
	}
	phase = normalizeLabel(phase)
	m.purchases.WithLabelValues(phase).Inc()
	m.tokensSold.WithLabelValues(phase).Add(toFloat(tokens))
	m.raised.WithLabelValues(phase).Add(toFloat(currency))
}

// RecordClaim tracks a vesting release.
func (m *SaleMetrics) RecordClaim(amount *big.Int) {
	if m == nil {
		return
	}
	m.claims.Inc()
	m.claimed.Add(toFloat(amount))
}

// SetRemaining publishes the unsold inventory.
func (m *SaleMetrics) SetRemaining(amount *big.Int) {
	if m == nil {
		return
	}
	m.remaining.Set(toFloat(amount))
}

// AddSubscribers adjusts the live subscriber gauge.
func (m *SaleMetrics) AddSubscribers(delta int) {
	if m == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "unknown"
	}
	return v
}

func toFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
