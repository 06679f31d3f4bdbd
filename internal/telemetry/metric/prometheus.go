package metric

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/vault-go/internal/core/domain"
)

const namespace = "vault"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Device operations
	ReadBytes   *prometheus.CounterVec
	WriteBytes  *prometheus.CounterVec
	WriteErrors *prometheus.CounterVec
	Trims       *prometheus.CounterVec
	Interrupted *prometheus.CounterVec

	// Control commands
	ControlCommands *prometheus.CounterVec

	// Request surfaces
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AuthFailures    *prometheus.CounterVec
	RateLimited     *prometheus.CounterVec
	Connections     *prometheus.GaugeVec
}

// NewRegistry creates a registry with all metrics and the Go runtime
// collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		ReadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "read_bytes_total",
			Help:      "Bytes returned by device reads.",
		}, []string{"device"}),
		WriteBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "write_bytes_total",
			Help:      "Bytes stored by device writes.",
		}, []string{"device"}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "write_errors_total",
			Help:      "Device writes that failed, by error code.",
		}, []string{"device", "code"}),
		Trims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "trims_total",
			Help:      "Device trims.",
		}, []string{"device"}),
		Interrupted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "interrupted_total",
			Help:      "Lock waits abandoned because the caller went away.",
		}, []string{"device"}),

		ControlCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "commands_total",
			Help:      "Control commands by name and result code.",
		}, []string{"command", "result"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by surface, command and status.",
		}, []string{"surface", "command", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by surface and command.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"surface", "command"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected admin secrets by surface.",
		}, []string{"surface"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-peer rate limit.",
		}, []string{"surface"}),
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open client connections by surface.",
		}, []string{"surface"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.ReadBytes,
		r.WriteBytes,
		r.WriteErrors,
		r.Trims,
		r.Interrupted,
		r.ControlCommands,
		r.RequestsTotal,
		r.RequestDuration,
		r.AuthFailures,
		r.RateLimited,
		r.Connections,
	)
	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// MustRegister adds extra collectors, such as a Collector.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the underlying registry for tests and handlers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns the /metrics handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Handler returns the /metrics handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// ObserveRead implements service.Observer.
func (r *Registry) ObserveRead(dev, n int) {
	r.ReadBytes.WithLabelValues(strconv.Itoa(dev)).Add(float64(n))
}

// ObserveWrite implements service.Observer.
func (r *Registry) ObserveWrite(dev, n int, err error) {
	label := strconv.Itoa(dev)
	if err != nil {
		r.WriteErrors.WithLabelValues(label, resultCode(err)).Inc()
	}
	r.WriteBytes.WithLabelValues(label).Add(float64(n))
}

// ObserveTrim implements service.Observer.
func (r *Registry) ObserveTrim(dev int) {
	r.Trims.WithLabelValues(strconv.Itoa(dev)).Inc()
}

// ObserveInterrupted implements service.Observer.
func (r *Registry) ObserveInterrupted(dev int) {
	r.Interrupted.WithLabelValues(strconv.Itoa(dev)).Inc()
}

// ObserveControl implements service.Observer.
func (r *Registry) ObserveControl(name string, err error) {
	r.ControlCommands.WithLabelValues(name, resultCode(err)).Inc()
}

// RecordRequest counts one request on a surface ("resp", "local", "http").
func (r *Registry) RecordRequest(surface, command, status string) {
	r.RequestsTotal.WithLabelValues(surface, command, status).Inc()
}

// ObserveRequestDuration records request latency in seconds.
func (r *Registry) ObserveRequestDuration(surface, command string, seconds float64) {
	r.RequestDuration.WithLabelValues(surface, command).Observe(seconds)
}

// RecordAuthFailure counts a rejected admin secret.
func (r *Registry) RecordAuthFailure(surface string) {
	r.AuthFailures.WithLabelValues(surface).Inc()
}

// RecordRateLimited counts a request rejected by the rate limiter.
func (r *Registry) RecordRateLimited(surface string) {
	r.RateLimited.WithLabelValues(surface).Inc()
}

// ConnOpened counts a new connection on a surface.
func (r *Registry) ConnOpened(surface string) {
	r.Connections.WithLabelValues(surface).Inc()
}

// ConnClosed undoes ConnOpened.
func (r *Registry) ConnClosed(surface string) {
	r.Connections.WithLabelValues(surface).Dec()
}

// resultCode maps an error to a low-cardinality label.
func resultCode(err error) string {
	if err == nil {
		return "ok"
	}
	if code := domain.GetErrorCode(err); code != "" {
		return code
	}
	return "error"
}
