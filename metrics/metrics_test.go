package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("doordb", reg)

	m.Observe("text_read", OutcomeOK, time.Millisecond, 20, 10)
	m.Observe("text_read", OutcomeOK, time.Millisecond, 20, 10)
	m.Observe("text_read", "server", time.Millisecond, 20, -1)

	if got := testutil.ToFloat64(m.Calls.WithLabelValues("text_read", OutcomeOK)); got != 2 {
		t.Fatalf("expect 2 ok calls, got %v", got)
	}
	if got := testutil.ToFloat64(m.Calls.WithLabelValues("text_read", "server")); got != 1 {
		t.Fatalf("expect 1 server failure, got %v", got)
	}
	if n := testutil.CollectAndCount(m.ResponseSize); n != 1 {
		t.Fatalf("expect 1 response size series, got %d", n)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Observe("counter_query", OutcomeOK, time.Millisecond, 1, 1)
}
