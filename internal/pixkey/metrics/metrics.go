package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the pix key engine. All
// methods are safe on a nil receiver so services can run without metrics.
type Metrics struct {
	KeyTransitions      *prometheus.CounterVec
	RegistryCalls       *prometheus.CounterVec
	RegistryDuration    *prometheus.HistogramVec
	RegistryBreakerOpen prometheus.Gauge
	Decodes             *prometheus.CounterVec
	DecodeCacheHits     prometheus.Counter
	HolderConflicts     prometheus.Counter
	Messages            *prometheus.CounterVec
	ReconcileEmitted    *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg yields unregistered
// collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		KeyTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkeys_key_transitions_total",
			Help: "Key state transitions by source and target state",
		}, []string{"from", "to"}),
		RegistryCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkeys_registry_calls_total",
			Help: "Registry gateway calls by operation and outcome",
		}, []string{"op", "outcome"}),
		RegistryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixkeys_registry_call_duration_seconds",
			Help:    "Registry gateway call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		RegistryBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "pixkeys_registry_circuit_open",
			Help: "1 when the registry circuit breaker is open",
		}),
		Decodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkeys_decode_total",
			Help: "Decode requests by result",
		}, []string{"result"}),
		DecodeCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "pixkeys_decode_cache_hits_total",
			Help: "Decode lookups answered from the content-addressed cache",
		}),
		HolderConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "pixkeys_key_holder_conflicts_total",
			Help: "Times more than two non-canceled keys shared one value",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkeys_messages_total",
			Help: "Consumed messages by topic and outcome",
		}, []string{"topic", "outcome"}),
		ReconcileEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pixkeys_reconcile_emitted_total",
			Help: "Events emitted by reconciliation jobs",
		}, []string{"job"}),
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m == nil {
		return
	}
	m.KeyTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveRegistryCall(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RegistryCalls.WithLabelValues(op, outcome).Inc()
	m.RegistryDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.RegistryBreakerOpen.Set(1)
		return
	}
	m.RegistryBreakerOpen.Set(0)
}

func (m *Metrics) IncrementDecode(result string) {
	if m == nil {
		return
	}
	m.Decodes.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementDecodeCacheHit() {
	if m == nil {
		return
	}
	m.DecodeCacheHits.Inc()
}

func (m *Metrics) IncrementHolderConflict() {
	if m == nil {
		return
	}
	m.HolderConflicts.Inc()
}

func (m *Metrics) IncrementMessage(topic, outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) AddReconcileEmitted(job string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ReconcileEmitted.WithLabelValues(job).Add(float64(n))
}
