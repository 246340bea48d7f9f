// Package metrics builds the process-wide Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry wraps the registry served on /metrics together with the
// process-level gauges.
type Registry struct {
	*prometheus.Registry
	Up *prometheus.GaugeVec
}

// NewRegistry returns a registry carrying the Go runtime, process and build
// collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	return &Registry{
		Registry: reg,
		Up: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "pixkeys_component_up",
			Help: "1 while a long-running component (consumer, reconciler, ops server) is running",
		}, []string{"component"}),
	}
}

// Running marks component up and returns the func that marks it down.
func (r *Registry) Running(component string) func() {
	r.Up.WithLabelValues(component).Set(1)
	return func() { r.Up.WithLabelValues(component).Set(0) }
}
