package spdmmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	spdmmetrics "github.com/spdm-io/spdm-responder/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := spdmmetrics.NewCollector(reg)

	if c.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if c.ProtocolErrorsTotal == nil {
		t.Error("ProtocolErrorsTotal is nil")
	}
	if c.ConnectionState == nil {
		t.Error("ConnectionState is nil")
	}
	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.DispatchDuration == nil {
		t.Error("DispatchDuration is nil")
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestRecordRequest(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := spdmmetrics.NewCollector(reg)

	c.RecordRequest("GetCertificate", "success")
	c.RecordRequest("GetCertificate", "success")
	c.RecordRequest("GetCertificate", "invalid_state")

	if got := counterValue(t, c.RequestsTotal, "GetCertificate", "success"); got != 2 {
		t.Errorf("RequestsTotal(GetCertificate, success) = %v, want 2", got)
	}
	if got := counterValue(t, c.RequestsTotal, "GetCertificate", "invalid_state"); got != 1 {
		t.Errorf("RequestsTotal(GetCertificate, invalid_state) = %v, want 1", got)
	}
}

func TestIncProtocolError(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := spdmmetrics.NewCollector(reg)

	c.IncProtocolError("Busy")
	c.IncProtocolError("Busy")
	c.IncProtocolError("UnsupportedRequest")

	if got := counterValue(t, c.ProtocolErrorsTotal, "Busy"); got != 2 {
		t.Errorf("ProtocolErrorsTotal(Busy) = %v, want 2", got)
	}
	if got := counterValue(t, c.ProtocolErrorsTotal, "UnsupportedRequest"); got != 1 {
		t.Errorf("ProtocolErrorsTotal(UnsupportedRequest) = %v, want 1", got)
	}
}

func TestSetConnectionState(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := spdmmetrics.NewCollector(reg)

	c.SetConnectionState("AfterVersion")

	if got := gaugeValue(t, c.ConnectionState, "AfterVersion"); got != 1 {
		t.Errorf("ConnectionState(AfterVersion) = %v, want 1", got)
	}
	if got := gaugeValue(t, c.ConnectionState, "NotStarted"); got != 0 {
		t.Errorf("ConnectionState(NotStarted) = %v, want 0", got)
	}

	c.SetConnectionState("Negotiated")

	if got := gaugeValue(t, c.ConnectionState, "Negotiated"); got != 1 {
		t.Errorf("ConnectionState(Negotiated) = %v, want 1", got)
	}
	if got := gaugeValue(t, c.ConnectionState, "AfterVersion"); got != 0 {
		t.Errorf("ConnectionState(AfterVersion) = %v, want 0 after advancing", got)
	}
}

func TestSessionsGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := spdmmetrics.NewCollector(reg)

	c.IncSessions()
	c.IncSessions()
	c.DecSessions()

	m := &dto.Metric{}
	if err := c.Sessions.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}
	if got := m.GetGauge().GetValue(); got != 1 {
		t.Errorf("Sessions = %v, want 1", got)
	}
}

func TestObserveDispatchDuration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := spdmmetrics.NewCollector(reg)

	c.ObserveDispatchDuration("GetVersion", 0.001)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "spdm_responder_dispatch_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Error("dispatch_duration_seconds histogram not found after observation")
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
