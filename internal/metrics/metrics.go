// Package metrics exposes Prometheus collectors for the upload flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "uploader"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	issued   *prometheus.CounterVec
	received *prometheus.CounterVec
	rejected *prometheus.CounterVec
	reverted *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		issued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorizations_issued_total",
			Help:      "Upload authorizations issued, by disk",
		}, []string{"disk"}),

		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_received_total",
			Help:      "Files persisted through the signed local upload endpoint",
		}, []string{"disk"}),

		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signature_rejections_total",
			Help:      "Upload requests rejected for a missing, invalid or expired signature",
		}, []string{"reason"}),

		reverted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reverts_total",
			Help:      "Revert calls, by whether an object was actually deleted",
		}, []string{"deleted"}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_failures_total",
			Help:      "Failed storage or presigner calls, by operation",
		}, []string{"op"}),
	}
}

func (m *Metrics) Issued(disk string) {
	if m != nil {
		m.issued.WithLabelValues(disk).Inc()
	}
}

func (m *Metrics) Received(disk string, files int) {
	if m != nil {
		m.received.WithLabelValues(disk).Add(float64(files))
	}
}

func (m *Metrics) Rejected(reason string) {
	if m != nil {
		m.rejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Reverted(deleted bool) {
	if m == nil {
		return
	}
	label := "false"
	if deleted {
		label = "true"
	}
	m.reverted.WithLabelValues(label).Inc()
}

func (m *Metrics) BackendFailure(op string) {
	if m != nil {
		m.failures.WithLabelValues(op).Inc()
	}
}
