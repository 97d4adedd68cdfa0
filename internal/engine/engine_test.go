package engine

import (
	"math"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

// fakeController always routes s1->s2 directly over the link passed
// in, admits everything, and never reroutes.
type fakeController struct {
	topo     *topology.Topology
	sampled  int
	rerouted int
}

func (c *fakeController) FindPath(topo *topology.Topology, src, dst string) ([]string, []*topology.Link, error) {
	path := []string{src, dst}
	return path, topo.LinksOnPath(path), nil
}
func (c *fakeController) IsFeasible([]string) bool { return true }
func (c *fakeController) Install(f *flow.Flow, path []string, links []*topology.Link) {
	for _, l := range links {
		l.AddFlow(f.Key)
	}
}
func (c *fakeController) Evict(f *flow.Flow) {
	for _, l := range f.Links {
		l.RemoveFlow(f.Key)
	}
}
func (c *fakeController) Reroute(now float64, active []*flow.Flow) []*flow.Flow {
	c.rerouted++
	return nil
}
func (c *fakeController) Sample(now float64, tracked []*flow.Flow) { c.sampled++ }

// fakeArrivals seeds exactly one flow and never schedules another
// within the test's bounded MaxTime.
type fakeArrivals struct{}

func (a *fakeArrivals) InitialArrivals() []TimedArrival {
	return []TimedArrival{{Time: 0, Arrival: Arrival{
		SrcIP:   netip.MustParseAddr("10.0.0.1"),
		DstIP:   netip.MustParseAddr("10.0.1.1"),
		SrcNode: "s1",
		DstNode: "s2",
		Size:    100,
		Rate:    math.Inf(1),
	}}}
}

func (a *fakeArrivals) Next(now float64, tracked map[topology.FlowKey]struct{}) (Arrival, float64) {
	return Arrival{}, math.Inf(1)
}

func (a *fakeArrivals) NextFromSource(now float64, srcNode string, srcIP netip.Addr, tracked map[topology.FlowKey]struct{}) Arrival {
	return Arrival{}
}

func (a *fakeArrivals) Saturate() bool { return false }

type fakeStats struct{ recorded []*flow.Flow }

func (s *fakeStats) LogLinkUtil(float64, *topology.Topology)  {}
func (s *fakeStats) LogTableUtil(float64, *topology.Topology) {}
func (s *fakeStats) RecordFlow(f *flow.Flow)                  { s.recorded = append(s.recorded, f) }

func twoNodeTopo(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.New(
		[]topology.NodeSpec{{Name: "s1", TableSize: 4, NHosts: 1}, {Name: "s2", TableSize: 4, NHosts: 1}},
		[]topology.LinkSpec{{Node1: "s1", Node2: "s2", Cap: 10}},
	)
	require.NoError(t, err)
	return topo
}

func TestSimulationRunsFlowToCompletionAndEviction(t *testing.T) {
	topo := twoNodeTopo(t)
	ctrl := &fakeController{topo: topo}
	arrivals := &fakeArrivals{}
	stats := &fakeStats{}

	sim := New(topo, ctrl, arrivals, stats, Config{
		IdleTimeout:   5,
		RetryInterval: 1,
		MaxTime:       100,
	})
	sim.Run()

	require.Len(t, stats.recorded, 1)
	f := stats.recorded[0]
	assert.Equal(t, flow.Removed, f.Status)
	assert.InDelta(t, 10, f.EndTime, 1e-6) // 100 bytes / 10 B/s
	assert.InDelta(t, 15, f.RemoveTime, 1e-6)
	assert.Empty(t, topo.MustLink("s1", "s2").Flows)
}
