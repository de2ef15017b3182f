// Package spdmmetrics exposes Prometheus metrics for spdm-responderd: one
// struct holding pre-registered vectors, a constructor that registers them
// against a Registerer, and thin per-event increment methods called from
// the dispatcher and context.
package spdmmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "spdm"
	subsystem = "responder"
)

// Label names for SPDM metrics.
const (
	labelCode      = "code"
	labelStatus    = "status"
	labelErrorCode = "error_code"
	labelConnState = "connection_state"
)

// Collector holds all spdm-responderd Prometheus metrics.
//
//   - RequestsTotal counts dispatched requests by opcode and outcome.
//   - ProtocolErrorsTotal counts wire-level ERROR responses by SPDM error code.
//   - ConnectionState tracks the current connection state as a gauge set
//     (1 for the active state, 0 for the rest), exposing FSM state without
//     a string-valued gauge.
//   - Sessions tracks the number of currently established sessions.
//   - DispatchDuration observes handler latency per opcode.
type Collector struct {
	RequestsTotal       *prometheus.CounterVec
	ProtocolErrorsTotal *prometheus.CounterVec
	ConnectionState     *prometheus.GaugeVec
	Sessions            prometheus.Gauge
	DispatchDuration    *prometheus.HistogramVec
}

// NewCollector creates a Collector with all metrics registered against reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.RequestsTotal,
		c.ProtocolErrorsTotal,
		c.ConnectionState,
		c.Sessions,
		c.DispatchDuration,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	return &Collector{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total SPDM requests dispatched, labeled by request code and outcome status.",
		}, []string{labelCode, labelStatus}),

		ProtocolErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "protocol_errors_total",
			Help:      "Total wire-level ERROR responses sent, labeled by SPDM error code.",
		}, []string{labelErrorCode}),

		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connection_state",
			Help:      "1 if the responder's connection state machine is currently in the labeled state, 0 otherwise.",
		}, []string{labelConnState}),

		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently established secure sessions.",
		}),

		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in Dispatch per request code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{labelCode}),
	}
}

// -------------------------------------------------------------------------
// Requests
// -------------------------------------------------------------------------

// RecordRequest increments the requests counter for the given request code
// and outcome status string (the daemon passes spdm.Status.String(), e.g.
// "Success", "InvalidState", "InternalError").
func (c *Collector) RecordRequest(code, status string) {
	c.RequestsTotal.WithLabelValues(code, status).Inc()
}

// ObserveDispatchDuration records how long Dispatch took to handle code.
func (c *Collector) ObserveDispatchDuration(code string, seconds float64) {
	c.DispatchDuration.WithLabelValues(code).Observe(seconds)
}

// -------------------------------------------------------------------------
// Protocol errors
// -------------------------------------------------------------------------

// IncProtocolError increments the protocol error counter for the given
// SPDM wire error code name (e.g. "InvalidRequest", "Busy", "UnsupportedRequest").
func (c *Collector) IncProtocolError(errorCode string) {
	c.ProtocolErrorsTotal.WithLabelValues(errorCode).Inc()
}

// -------------------------------------------------------------------------
// Connection state
// -------------------------------------------------------------------------

// allConnectionStates enumerates every ConnectionState name so
// SetConnectionState can zero out every label but the active one.
var allConnectionStates = []string{
	"NotStarted",
	"AfterVersion",
	"AfterCapabilities",
	"Negotiated",
	"AfterDigests",
	"AfterCertificate",
	"Authenticated",
}

// SetConnectionState marks state as the active connection state, zeroing
// every other known state in the gauge vector.
func (c *Collector) SetConnectionState(state string) {
	for _, s := range allConnectionStates {
		if s == state {
			c.ConnectionState.WithLabelValues(s).Set(1)
		} else {
			c.ConnectionState.WithLabelValues(s).Set(0)
		}
	}
}

// -------------------------------------------------------------------------
// Sessions
// -------------------------------------------------------------------------

// IncSessions increments the established-session gauge.
func (c *Collector) IncSessions() {
	c.Sessions.Inc()
}

// DecSessions decrements the established-session gauge.
func (c *Collector) DecSessions() {
	c.Sessions.Dec()
}
