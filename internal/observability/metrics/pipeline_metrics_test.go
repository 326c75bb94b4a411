package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineSingleton(t *testing.T) {
	ResetPipelineMetricsForTest()

	first := Pipeline()
	if first == nil {
		t.Fatal("expected pipeline metrics instance")
	}
	if second := Pipeline(); second != first {
		t.Fatal("expected Pipeline to return the same instance")
	}
}

func TestPipelineMetricsRecord(t *testing.T) {
	m := newPipelineMetrics(prometheus.NewRegistry())

	m.IncEmailProcessed("MATCHED")
	m.IncNotification("SMS", "SENT")
	m.IncNotification("SMS", "SENT")
	m.IncFallback()
	m.AddRetries(3)
	m.AddRetries(0)
	m.SetQueueDepth(4)

	if got := testutil.ToFloat64(m.emailsProcessed.WithLabelValues("MATCHED")); got != 1 {
		t.Fatalf("expected 1 processed email, got %v", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("SMS", "SENT")); got != 2 {
		t.Fatalf("expected 2 sms notifications, got %v", got)
	}
	if got := testutil.ToFloat64(m.fallbacks); got != 1 {
		t.Fatalf("expected 1 fallback, got %v", got)
	}
	if got := testutil.ToFloat64(m.retries); got != 3 {
		t.Fatalf("expected 3 retries, got %v", got)
	}
	if got := testutil.ToFloat64(m.queueDepth); got != 4 {
		t.Fatalf("expected queue depth 4, got %v", got)
	}
}

func TestNilPipelineMetricsAreSafe(t *testing.T) {
	var m *PipelineMetrics

	m.IncEmailProcessed("MATCHED")
	m.IncNotification("SMS", "SENT")
	m.IncFallback()
	m.AddRetries(1)
	m.SetQueueDepth(2)
	m.ObserveDispatchDuration(time.Second)
}
