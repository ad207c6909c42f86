package configuration

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stats counts configuration work for one analysis run. The counters live on
// a private registry so that independent runs never share totals.
type Stats struct {
	registry *prometheus.Registry

	// transitions counts Transition calls
	transitions prometheus.Counter
	// edges counts automaton edges applied by Transition
	edges prometheus.Counter
	// internHits counts interns that found a canonical instance
	internHits prometheus.Counter
	// internMisses counts interns that registered a new instance
	internMisses prometheus.Counter
}

func newStats() *Stats {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Stats{
		registry: reg,
		transitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmelide_configuration_transitions_total",
			Help: "Total configuration transitions",
		}),
		edges: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmelide_configuration_edges_total",
			Help: "Total automaton edges applied by transitions",
		}),
		internHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmelide_configuration_intern_hits_total",
			Help: "Total interns resolved to an existing configuration",
		}),
		internMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "tmelide_configuration_intern_misses_total",
			Help: "Total interns that registered a new configuration",
		}),
	}
}

// Registry returns the registry holding the counters, for a host to gather.
func (s *Stats) Registry() *prometheus.Registry { return s.registry }
