package core

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics counts coordinator operations and the cross-store failure modes
// worth alerting on.
type Metrics struct {
	operations      *prometheus.CounterVec
	commitConflicts prometheus.Counter
	orphansLeaked   prometheus.Counter
	missingSpatial  prometheus.Counter
}

// NewMetrics constructs the coordinator metric set and registers it with
// reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mindsim",
			Subsystem: "coordinator",
			Name:      "operations_total",
			Help:      "Coordinator operations by collection, operation and outcome.",
		}, []string{"collection", "op", "outcome"}),
		commitConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindsim",
			Subsystem: "coordinator",
			Name:      "commit_conflicts_total",
			Help:      "Graph transaction commits rejected due to concurrent modification.",
		}),
		orphansLeaked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindsim",
			Subsystem: "coordinator",
			Name:      "orphans_leaked_total",
			Help:      "Compensating cleanups that failed, leaving an orphaned record or blob.",
		}),
		missingSpatial: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mindsim",
			Subsystem: "coordinator",
			Name:      "missing_spatial_total",
			Help:      "Entities observed referencing an absent spatial record.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.commitConflicts, m.orphansLeaked, m.missingSpatial)
	}
	return m
}

func (m *Metrics) observe(coll domain.Collection, op, outcome string) {
	m.operations.WithLabelValues(string(coll), op, outcome).Inc()
}
