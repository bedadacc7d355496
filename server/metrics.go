package server

import "github.com/prometheus/client_golang/prometheus"

const (
	loadLoaded        = "loaded"
	loadFailed        = "failed"
	loadAlreadyLoaded = "already_loaded"
)

// metrics tracks world loads of a Server. All methods are no-ops on a nil
// *metrics.
type metrics struct {
	loads  *prometheus.CounterVec
	loaded prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terracotta",
			Name:      "world_loads_total",
			Help:      "World load attempts by result (loaded, failed, already_loaded).",
		}, []string{"result"}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "terracotta",
			Name:      "worlds_loaded",
			Help:      "Number of worlds currently loaded.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.loads, m.loaded)
	}
	return m
}

func (m *metrics) load(result string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(result).Inc()
}

func (m *metrics) setLoaded(n int) {
	if m == nil {
		return
	}
	m.loaded.Set(float64(n))
}
