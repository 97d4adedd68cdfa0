// Package metrics exports live simulation observability via
// Prometheus, grounded on the reference corpus's
// prometheus/client_golang usage (counters/gauges registered against a
// private registry, served over promhttp) rather than the default
// global registry, so multiple runs in one process never collide.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/stats"
	"github.com/kychen/flowsim/internal/topology"
)

// Registry owns one run's Prometheus collectors.
type Registry struct {
	reg *prometheus.Registry

	flowsCompleted prometheus.Counter
	flowDuration   prometheus.Histogram
	linkUtil       *prometheus.GaugeVec
	tableUtil      *prometheus.GaugeVec
}

// NewRegistry creates a private registry with the simulation's
// collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		flowsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "flowsim", Name: "flows_completed_total",
			Help: "Total number of flows that finished transmitting.",
		}),
		flowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "flowsim", Name: "flow_duration_seconds",
			Help:    "Simulated flow completion duration.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		linkUtil: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowsim", Name: "link_utilization_ratio",
			Help: "Most recently sampled link utilization, 0-1.",
		}, []string{"node_a", "node_b"}),
		tableUtil: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowsim", Name: "table_utilization_ratio",
			Help: "Most recently sampled flow-table utilization, 0-1.",
		}, []string{"node"}),
	}
	reg.MustRegister(r.flowsCompleted, r.flowDuration, r.linkUtil, r.tableUtil)
	return r
}

// Gatherer exposes the private registry for promhttp.HandlerFor.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// sink wraps a *stats.Sink so every CSV-bound observation also updates
// the Prometheus collectors, implementing engine.StatsSink.
type sink struct {
	inner *stats.Sink
	reg   *Registry
}

// WrapStats combines CSV export and Prometheus export behind a single
// engine.StatsSink.
func WrapStats(inner *stats.Sink, reg *Registry) *sink {
	return &sink{inner: inner, reg: reg}
}

func (s *sink) LogLinkUtil(now float64, topo *topology.Topology) {
	s.inner.LogLinkUtil(now, topo)
	for _, l := range topo.Links() {
		util := 0.0
		if l.Cap > 0 {
			used := l.Cap - l.UnassignedBW
			if used < 0 {
				used = 0
			}
			util = used / l.Cap
		}
		s.reg.linkUtil.WithLabelValues(l.A, l.B).Set(util)
	}
}

func (s *sink) LogTableUtil(now float64, topo *topology.Topology) {
	s.inner.LogTableUtil(now, topo)
	for _, name := range topo.Nodes() {
		n := topo.MustNode(name)
		util := 0.0
		if n.TableSize > 0 {
			util = float64(n.TableUsage()) / float64(n.TableSize)
		}
		s.reg.tableUtil.WithLabelValues(name).Set(util)
	}
}

func (s *sink) RecordFlow(f *flow.Flow) {
	s.inner.RecordFlow(f)
	s.reg.flowsCompleted.Inc()
	s.reg.flowDuration.Observe(f.Duration)
}
