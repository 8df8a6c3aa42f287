package composite

import (
	"strings"

	"github.com/brettbedarf/workspacefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts dispatched operations. A nil *Metrics records nothing.
type Metrics struct {
	ops    *prometheus.CounterVec
	mounts prometheus.Gauge
}

// NewMetrics registers the composite collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ops: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspacefs_composite_operations_total",
				Help: "Total number of operations dispatched to mounts",
			},
			[]string{"op", "mount_type", "result"},
		),
		mounts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspacefs_composite_mounts",
				Help: "Number of mounts in the namespace",
			},
		),
	}
}

func (m *Metrics) observe(op, mountType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = strings.ToLower(string(workspacefs.KindOf(err)))
	}
	if mountType == "" {
		mountType = "none"
	}
	m.ops.WithLabelValues(op, mountType, result).Inc()
}

func (m *Metrics) setMounts(n int) {
	if m == nil {
		return
	}
	m.mounts.Set(float64(n))
}
