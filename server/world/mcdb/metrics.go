package mcdb

import "github.com/prometheus/client_golang/prometheus"

const (
	readHit   = "hit"
	readMiss  = "miss"
	readError = "error"
)

// Metrics records reads and writes of Stores. A nil *Metrics records nothing.
// A single Metrics may be shared by the Stores of all worlds.
type Metrics struct {
	reads  *prometheus.CounterVec
	writes prometheus.Counter
}

// NewMetrics creates Metrics and registers them with reg. If reg is nil, the
// metrics are not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terracotta",
			Subsystem: "store",
			Name:      "reads_total",
			Help:      "Chunk database reads by result (hit, miss, error).",
		}, []string{"result"}),
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "terracotta",
			Subsystem: "store",
			Name:      "writes_total",
			Help:      "Chunk database writes and deletes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.reads, m.writes)
	}
	return m
}

func (m *Metrics) read(result string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(result).Inc()
}

func (m *Metrics) write() {
	if m == nil {
		return
	}
	m.writes.Inc()
}
