package writer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	dropBufferFull    = "buffer_full"
	dropSerialization = "serialization"
	dropInvalid       = "invalid"
	dropSendFailed    = "send_failed"
)

type stats struct {
	enqueued     prometheus.Counter
	dropped      *prometheus.CounterVec
	truncated    prometheus.Counter
	sent         prometheus.Counter
	requests     *prometheus.CounterVec
	payloadBytes prometheus.Histogram
}

func newStats(writerName string, registerer prometheus.Registerer) *stats {
	labels := prometheus.Labels{"writer": writerName}
	s := &stats{
		enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmobs", Subsystem: "writer", Name: "events_enqueued_total",
			Help: "Events handed to the writer.", ConstLabels: labels,
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmobs", Subsystem: "writer", Name: "events_dropped_total",
			Help: "Events that never reached the intake.", ConstLabels: labels,
		}, []string{"reason"}),
		truncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmobs", Subsystem: "writer", Name: "events_truncated_total",
			Help: "Spans whose input and output were dropped for size.", ConstLabels: labels,
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "llmobs", Subsystem: "writer", Name: "events_sent_total",
			Help: "Events accepted by the intake.", ConstLabels: labels,
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llmobs", Subsystem: "writer", Name: "http_requests_total",
			Help: "Posts to the intake by result.", ConstLabels: labels,
		}, []string{"result"}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "llmobs", Subsystem: "writer", Name: "payload_bytes",
			Help: "Size of the bodies posted to the intake.", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
	}
	if registerer == nil {
		return s
	}
	s.enqueued = register(registerer, s.enqueued).(prometheus.Counter)
	s.dropped = register(registerer, s.dropped).(*prometheus.CounterVec)
	s.truncated = register(registerer, s.truncated).(prometheus.Counter)
	s.sent = register(registerer, s.sent).(prometheus.Counter)
	s.requests = register(registerer, s.requests).(*prometheus.CounterVec)
	s.payloadBytes = register(registerer, s.payloadBytes).(prometheus.Histogram)
	return s
}

// register returns the collector already registered under the same descriptor, so a
// recreated writer keeps counting where the previous one stopped.
func register(registerer prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := registerer.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

func (s *stats) drop(reason string, n int) {
	s.dropped.WithLabelValues(reason).Add(float64(n))
}
