package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	_ Factory  = (*prometheusFactory)(nil)
	_ Payments = (*paymentMetrics)(nil)
	_ Payments = Nop{}
)

type prometheusFactory struct {
	registry *prometheus.Registry
	payments *paymentMetrics
}

func NewFactory() Factory {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &prometheusFactory{
		registry: reg,
		payments: newPaymentMetrics(reg),
	}
}

func (f *prometheusFactory) Payments() Payments {
	return f.payments
}

func (f *prometheusFactory) Handler() http.Handler {
	return promhttp.HandlerFor(f.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

type paymentMetrics struct {
	created    *prometheus.CounterVec
	callbacks  *prometheus.CounterVec
	signatures *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	upstream   *prometheus.HistogramVec
}

func newPaymentMetrics(reg prometheus.Registerer) *paymentMetrics {
	m := &paymentMetrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Payment creation attempts by provider and outcome",
		}, []string{"provider", "ok"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_callbacks_total",
			Help: "Verified provider callbacks by canonical status",
		}, []string{"provider", "status"}),
		signatures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_signature_failures_total",
			Help: "Callbacks rejected by signature verification",
		}, []string{"provider"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_duplicate_callbacks_total",
			Help: "Successful callbacks for an order that was already fulfilled",
		}, []string{"provider"}),
		upstream: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payments_upstream_duration_seconds",
			Help:    "Duration of provider operations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "operation"}),
	}
	reg.MustRegister(m.created, m.callbacks, m.signatures, m.duplicates, m.upstream)
	return m
}

func (m *paymentMetrics) Created(provider string, ok bool) {
	m.created.WithLabelValues(provider, strconv.FormatBool(ok)).Inc()
}

func (m *paymentMetrics) Callback(provider, status string) {
	m.callbacks.WithLabelValues(provider, status).Inc()
}

func (m *paymentMetrics) SignatureFailure(provider string) {
	m.signatures.WithLabelValues(provider).Inc()
}

func (m *paymentMetrics) Duplicate(provider string) {
	m.duplicates.WithLabelValues(provider).Inc()
}

func (m *paymentMetrics) Upstream(provider, operation string, duration time.Duration) {
	m.upstream.WithLabelValues(provider, operation).Observe(duration.Seconds())
}
