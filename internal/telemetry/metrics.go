package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autoguard/internal/model"
)

// Metrics is the prometheus surface of the backend. It uses its own registry
// so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration prometheus.Histogram
	serverCPU       *prometheus.GaugeVec
	serverMemory    *prometheus.GaugeVec
	alertsRaised    *prometheus.CounterVec
	subscribers     prometheus.GaugeFunc
}

func NewMetrics(subscribers func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		}, []string{"method", "endpoint"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration",
			Buckets: prometheus.DefBuckets,
		}),
		serverCPU: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "server_cpu_usage_percent",
			Help: "Server CPU usage percentage",
		}, []string{"server"}),
		serverMemory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "server_memory_usage_percent",
			Help: "Server memory usage percentage",
		}, []string{"server"}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_raised_total",
			Help: "Alerts inserted into the alert store",
		}, []string{"type", "severity"}),
	}
	if subscribers == nil {
		subscribers = func() int { return 0 }
	}
	m.subscribers = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "event_subscribers",
		Help: "Connected event subscribers",
	}, func() float64 { return float64(subscribers()) })

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.serverCPU,
		m.serverMemory,
		m.alertsRaised,
		m.subscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, endpoint string, d time.Duration) {
	m.requests.WithLabelValues(method, endpoint).Inc()
	m.requestDuration.Observe(d.Seconds())
}

// ObserveReadings replaces the per-server gauges so units that disappeared
// stop being exported.
func (m *Metrics) ObserveReadings(readings []model.UtilizationReading) {
	m.serverCPU.Reset()
	m.serverMemory.Reset()
	for _, r := range readings {
		m.serverCPU.WithLabelValues(r.Source()).Set(r.CPUPercent)
		m.serverMemory.WithLabelValues(r.Source()).Set(r.MemoryPercent)
	}
}

func (m *Metrics) ObserveAlert(a model.Alert) {
	m.alertsRaised.WithLabelValues(a.Type, string(a.Severity)).Inc()
}
