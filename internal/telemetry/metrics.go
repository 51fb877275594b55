package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics is the process metric set. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cartPricing     prometheus.Histogram
	ordersConfirmed *prometheus.CounterVec
	outboxPublished *prometheus.CounterVec
	pendingCleaned  prometheus.Counter
	webhookEvents   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cartPricing: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cart_pricing_duration_seconds",
			Help:      "Time spent loading and pricing a cart.",
			Buckets:   prometheus.ExponentialBuckets(0.002, 2, 10),
		}),
		ordersConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_confirmed_total",
			Help:      "Orders moved to processing, by kind.",
		}, []string{"kind"}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_published_total",
			Help:      "Order events published from the outbox.",
		}, []string{"event_type"}),
		pendingCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pending_orders_cleaned_total",
			Help:      "Abandoned pending orders deleted.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by source, event type and outcome.",
		}, []string{"source", "event_type", "outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cartPricing,
		m.ordersConfirmed,
		m.outboxPublished,
		m.pendingCleaned,
		m.webhookEvents,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveCartPricing(start time.Time) {
	if m == nil {
		return
	}
	m.cartPricing.Observe(time.Since(start).Seconds())
}

func (m *Metrics) OrderConfirmed(kind string) {
	if m == nil {
		return
	}
	m.ordersConfirmed.WithLabelValues(kind).Inc()
}

func (m *Metrics) OutboxPublished(eventType string) {
	if m == nil {
		return
	}
	m.outboxPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) PendingOrdersCleaned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.pendingCleaned.Add(float64(n))
}

func (m *Metrics) WebhookEvent(source, eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(source, eventType, outcome).Inc()
}
