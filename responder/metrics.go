package responder

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ardnew/mtpresponder/mtp"
)

const (
	metricsNamespace = "mtpresponder"
	metricsSubsystem = "engine"
)

// Metrics is additive observability the spec's Non-goals never mention
// (SPEC_FULL.md §4); it is optional and every Engine method that
// touches it is nil-safe.
type Metrics struct {
	transactions *prometheus.CounterVec
	bytesIn      prometheus.Counter
	bytesOut     prometheus.Counter
	editSessions prometheus.Gauge
}

// NewMetrics constructs and registers the engine's collectors against
// reg. Pass prometheus.DefaultRegisterer for the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "transactions_total",
			Help:      "Number of MTP transactions processed, by operation and response code.",
		}, []string{"operation", "response_code"}),
		bytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "bytes_in_total",
			Help:      "Bytes received from the host across all Data-in containers and streamed sends.",
		}),
		bytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "bytes_out_total",
			Help:      "Bytes sent to the host across all Data-out containers and streamed reads.",
		}),
		editSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "edit_sessions_open",
			Help:      "Number of currently open BeginEditObject sessions.",
		}),
	}
	reg.MustRegister(m.transactions, m.bytesIn, m.bytesOut, m.editSessions)
	return m
}

func (m *Metrics) recordTransaction(op uint16, code mtp.ResponseCode) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(mtp.OpNames[op], code.String()).Inc()
}

func (m *Metrics) addBytesIn(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesIn.Add(float64(n))
}

func (m *Metrics) addBytesOut(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesOut.Add(float64(n))
}

func (m *Metrics) editSessionOpened() {
	if m == nil {
		return
	}
	m.editSessions.Inc()
}

func (m *Metrics) editSessionClosed() {
	if m == nil {
		return
	}
	m.editSessions.Dec()
}
