package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics captures email processing and notification delivery health
// signals.
type PipelineMetrics struct {
	emailsProcessed  *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	fallbacks        prometheus.Counter
	retries          prometheus.Counter
	queueDepth       prometheus.Gauge
	dispatchDuration prometheus.Histogram
}

var (
	pipelineMetricsOnce sync.Once
	pipelineMetrics     *PipelineMetrics
)

// Pipeline returns the singleton pipeline metrics registry.
func Pipeline() *PipelineMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newPipelineMetrics(prometheus.DefaultRegisterer)
	})
	return pipelineMetrics
}

// ResetPipelineMetricsForTest resets the pipeline metrics singleton for tests.
func ResetPipelineMetricsForTest() {
	pipelineMetricsOnce = sync.Once{}
	pipelineMetrics = nil
}

func newPipelineMetrics(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	emailsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersignal_emails_processed_total",
		Help: "Incoming emails processed by terminal status.",
	}, []string{"status"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ordersignal_notifications_total",
		Help: "Notification sends by channel and terminal status.",
	}, []string{"type", "status"})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ordersignal_notification_fallbacks_total",
		Help: "SMS sends flagged as fallback after a failed alimtalk attempt.",
	})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ordersignal_notification_retries_total",
		Help: "Notification send retries after transient provider failures.",
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ordersignal_submit_queue_depth",
		Help: "Emails waiting in the overflow queue behind the processing slots.",
	})
	dispatchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ordersignal_dispatch_duration_seconds",
		Help:    "End-to-end processing latency for one incoming email.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	registerer.MustRegister(
		emailsProcessed,
		notifications,
		fallbacks,
		retries,
		queueDepth,
		dispatchDuration,
	)

	return &PipelineMetrics{
		emailsProcessed:  emailsProcessed,
		notifications:    notifications,
		fallbacks:        fallbacks,
		retries:          retries,
		queueDepth:       queueDepth,
		dispatchDuration: dispatchDuration,
	}
}

// IncEmailProcessed increments the processed counter for a terminal status.
func (m *PipelineMetrics) IncEmailProcessed(status string) {
	if m == nil || m.emailsProcessed == nil {
		return
	}
	m.emailsProcessed.WithLabelValues(status).Inc()
}

// IncNotification increments the delivery counter for a channel and status.
func (m *PipelineMetrics) IncNotification(notificationType, status string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(notificationType, status).Inc()
}

// IncFallback increments the SMS fallback counter.
func (m *PipelineMetrics) IncFallback() {
	if m == nil || m.fallbacks == nil {
		return
	}
	m.fallbacks.Inc()
}

// AddRetries adds the retry count of one finished notification.
func (m *PipelineMetrics) AddRetries(count int) {
	if m == nil || m.retries == nil || count <= 0 {
		return
	}
	m.retries.Add(float64(count))
}

// SetQueueDepth records the current overflow queue length.
func (m *PipelineMetrics) SetQueueDepth(depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// ObserveDispatchDuration records end-to-end latency for one email.
func (m *PipelineMetrics) ObserveDispatchDuration(duration time.Duration) {
	if m == nil || m.dispatchDuration == nil {
		return
	}
	m.dispatchDuration.Observe(duration.Seconds())
}
