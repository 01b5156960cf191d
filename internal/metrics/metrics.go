// Package metrics provides optional Prometheus observability for the
// request pipeline. When metrics are disabled the constructors return nil,
// and every method on a nil receiver is a no-op, so callers never need to
// branch on whether metrics are on.
package metrics

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/cape/internal/capeerr"
	"github.com/marmos91/cape/internal/capeproto"
)

var (
	registryMu sync.Mutex
	registry   *prometheus.Registry
)

// InitRegistry creates the process-wide metrics registry, enabling metric
// collection. Safe to call more than once.
func InitRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry != nil
}

// Registry returns the process-wide registry, or nil if metrics are
// disabled.
func Registry() *prometheus.Registry {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry
}

// ServerMetrics collects request, session, and pool gauges for the Cape
// server. A nil *ServerMetrics is valid and records nothing.
type ServerMetrics struct {
	requestsTotal  *prometheus.CounterVec
	activeSessions prometheus.Gauge
	poolQueueDepth prometheus.Gauge
	connsAccepted  prometheus.Counter
}

// NewServerMetrics creates the server's Prometheus collectors. Returns nil
// when metrics are not enabled (InitRegistry not called).
func NewServerMetrics() *ServerMetrics {
	if !IsEnabled() {
		return nil
	}
	return newServerMetrics(Registry())
}

func newServerMetrics(reg *prometheus.Registry) *ServerMetrics {
	return &ServerMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "cape_requests_total",
				Help: "Total requests dispatched, by opcode and result code",
			},
			[]string{"opcode", "result"},
		),
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cape_active_sessions",
				Help: "Number of live session ids in the session table",
			},
		),
		poolQueueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "cape_pool_queue_depth",
				Help: "Jobs buffered in the worker pool queue",
			},
		),
		connsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "cape_connections_accepted_total",
				Help: "Total TCP connections accepted",
			},
		),
	}
}

// ObserveRequest records one dispatched request with its outcome.
func (m *ServerMetrics) ObserveRequest(opcode capeproto.Opcode, code capeerr.Code) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(
		fmt.Sprintf("0x%02x", uint8(opcode)),
		fmt.Sprintf("%d", uint8(code)),
	).Inc()
}

// SetActiveSessions records the current live-session count.
func (m *ServerMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// SetQueueDepth records the worker pool's buffered job count.
func (m *ServerMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.poolQueueDepth.Set(float64(n))
}

// RecordConnectionAccepted counts one accepted TCP connection.
func (m *ServerMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connsAccepted.Inc()
}
