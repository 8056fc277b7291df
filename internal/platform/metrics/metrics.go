package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the telemetry service.
type Metrics struct {
	registry               *prometheus.Registry
	requestsTotal          prometheus.Counter
	errorsTotal            prometheus.Counter
	ticksTotal             prometheus.Counter
	tickDuration           prometheus.Histogram
	deliveriesTotal        prometheus.Counter
	deliveryFailuresTotal  prometheus.Counter
	subscribersActive      prometheus.Gauge
	networkVehicles        prometheus.Gauge
	networkCongestion      prometheus.Gauge
	junctionCongestion     *prometheus.GaugeVec
	connectionsRejectTotal prometheus.Counter
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traffic_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traffic_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traffic_ticks_total",
			Help: "Total number of broadcast loop ticks",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "traffic_tick_duration_seconds",
			Help:    "Time to build and broadcast one snapshot",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		deliveriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traffic_deliveries_total",
			Help: "Total number of successful subscriber deliveries",
		}),
		deliveryFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traffic_delivery_failures_total",
			Help: "Total number of failed subscriber deliveries (each evicts the subscriber)",
		}),
		subscribersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traffic_subscribers_active",
			Help: "Number of registered live subscribers",
		}),
		networkVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traffic_network_vehicles",
			Help: "Total vehicles detected in the latest snapshot",
		}),
		networkCongestion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traffic_network_congestion",
			Help: "Mean congestion ratio of the latest snapshot",
		}),
		junctionCongestion: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "traffic_junction_congestion",
			Help: "Congestion ratio per junction in the latest snapshot",
		}, []string{"junction_id"}),
		connectionsRejectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traffic_ws_connections_rejected_total",
			Help: "Total number of live subscription attempts rejected by the rate limiter",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.ticksTotal,
		m.tickDuration,
		m.deliveriesTotal,
		m.deliveryFailuresTotal,
		m.subscribersActive,
		m.networkVehicles,
		m.networkCongestion,
		m.junctionCongestion,
		m.connectionsRejectTotal,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveTick counts one tick and records its duration.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.ticksTotal.Inc()
	m.tickDuration.Observe(d.Seconds())
}

// AddDeliveries adds n successful deliveries.
func (m *Metrics) AddDeliveries(n int) {
	m.deliveriesTotal.Add(float64(n))
}

// AddDeliveryFailures adds n failed deliveries.
func (m *Metrics) AddDeliveryFailures(n int) {
	m.deliveryFailuresTotal.Add(float64(n))
}

// SetActiveSubscribers sets the subscriber gauge.
func (m *Metrics) SetActiveSubscribers(n int) {
	m.subscribersActive.Set(float64(n))
}

// SetNetwork records the network aggregates of the latest snapshot.
func (m *Metrics) SetNetwork(vehicles int, congestion float64) {
	m.networkVehicles.Set(float64(vehicles))
	m.networkCongestion.Set(congestion)
}

// SetJunctionCongestion records one junction's latest congestion ratio.
func (m *Metrics) SetJunctionCongestion(junctionID string, congestion float64) {
	m.junctionCongestion.WithLabelValues(junctionID).Set(congestion)
}

// IncConnectionsRejected counts a rate-limited subscription attempt.
func (m *Metrics) IncConnectionsRejected() {
	m.connectionsRejectTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active subscribers).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
