package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storefront"

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	ordersPlaced     *prometheus.CounterVec
	orderFailures    *prometheus.CounterVec
	reservedUnits    prometheus.Counter
	publishFailures  prometheus.Counter
	requestDurations *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Order records created, by fulfillment flow.",
		}, []string{"flow"}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_failures_total",
			Help:      "Rejected order and cart requests, by flow and reason.",
		}, []string{"flow", "reason"}),
		reservedUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reserved_units_total",
			Help:      "Units of stock removed by reservations.",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_publish_failures_total",
			Help:      "Order events that could not be published.",
		}),
		requestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(m.ordersPlaced, m.orderFailures, m.reservedUnits, m.publishFailures, m.requestDurations)
	return m
}

func (m *Metrics) OrderPlaced(flow string) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(flow).Inc()
}

func (m *Metrics) OrderFailed(flow, reason string) {
	if m == nil {
		return
	}
	m.orderFailures.WithLabelValues(flow, reason).Inc()
}

func (m *Metrics) StockReserved(quantity int) {
	if m == nil {
		return
	}
	m.reservedUnits.Add(float64(quantity))
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) ObserveRequest(method, route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDurations.WithLabelValues(method, route, code).Observe(seconds)
}
