package controller

import (
	"math/rand/v2"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/routedb"
	"github.com/kychen/flowsim/internal/topology"
)

func diamond(t *testing.T) *topology.Topology {
	t.Helper()
	nodes := []topology.NodeSpec{
		{Name: "s1", TableSize: 8}, {Name: "s2", TableSize: 8},
		{Name: "s3", TableSize: 8}, {Name: "s4", TableSize: 8},
	}
	links := []topology.LinkSpec{
		{Node1: "s1", Node2: "s2", Cap: 100},
		{Node1: "s1", Node2: "s3", Cap: 100},
		{Node1: "s2", Node2: "s4", Cap: 100},
		{Node1: "s3", Node2: "s4", Cap: 100},
	}
	topo, err := topology.New(nodes, links)
	require.NoError(t, err)
	return topo
}

func TestFindPathRandomReturnsAKnownCandidate(t *testing.T) {
	topo := diamond(t)
	db, err := routedb.Build(topo, routedb.AllShortest, 0)
	require.NoError(t, err)

	ctrl := New(topo, db, ModeRandom, PolicyOAB, rand.New(rand.NewPCG(1, 2)), 4)
	path, links, err := ctrl.FindPath(topo, "s1", "s4")
	require.NoError(t, err)
	assert.Len(t, path, 3)
	assert.Len(t, links, 2)
}

func TestIsFeasibleRejectsFullTable(t *testing.T) {
	topo := diamond(t)
	db, err := routedb.Build(topo, routedb.OneShortest, 0)
	require.NoError(t, err)
	ctrl := New(topo, db, ModeRandom, PolicyOAB, rand.New(rand.NewPCG(1, 2)), 4)

	// s1-s2-s4 is OneShortest's sole candidate for this pair; zeroing
	// s2's table leaves FindPath with no feasible candidate at all.
	n := topo.MustNode("s2")
	n.TableSize = 0
	_, _, err = ctrl.FindPath(topo, "s1", "s4")
	assert.ErrorIs(t, err, ErrNoCandidatePaths)
}

func TestInstallAndEvictRoundTrip(t *testing.T) {
	topo := diamond(t)
	db, err := routedb.Build(topo, routedb.OneShortest, 0)
	require.NoError(t, err)
	ctrl := New(topo, db, ModeRandom, PolicyOAB, rand.New(rand.NewPCG(1, 2)), 4)

	ip := netip.MustParseAddr("10.0.0.1")
	f := flow.New(topology.FlowKey{Src: ip, Dst: ip}, "s1", "s4", 100, 10, 0)
	path, links, err := ctrl.FindPath(topo, "s1", "s4")
	require.NoError(t, err)

	ctrl.Install(f, path, links)
	for _, name := range path {
		assert.Equal(t, 1, topo.MustNode(name).TableUsage())
	}
	for _, l := range links {
		assert.Contains(t, l.Flows, f.Key)
	}

	ctrl.Evict(f)
	for _, name := range path {
		assert.Equal(t, 0, topo.MustNode(name).TableUsage())
	}
	for _, l := range links {
		assert.NotContains(t, l.Flows, f.Key)
	}
}

func TestRerouteMovesElephantToBetterPath(t *testing.T) {
	topo := diamond(t)
	db, err := routedb.Build(topo, routedb.AllShortest, 0)
	require.NoError(t, err)
	ctrl := New(topo, db, ModeRandom, PolicyOAB, rand.New(rand.NewPCG(1, 2)), 1)

	ip1 := netip.MustParseAddr("10.0.0.1")
	ip2 := netip.MustParseAddr("10.0.0.2")

	g := flow.New(topology.FlowKey{Src: ip1, Dst: ip1}, "s1", "s4", 1000, 10, 0)
	g.Status = flow.Active
	g.Path = []string{"s1", "s2", "s4"}
	g.Links = topo.LinksOnPath(g.Path)
	ctrl.Install(g, g.Path, g.Links)

	// First pass: g is the only elephant, and has no contention to
	// react to, so it stays put but becomes old-managed.
	ctrl.Sample(0, []*flow.Flow{g})
	firstMoved := ctrl.Reroute(0, []*flow.Flow{g})
	require.Empty(t, firstMoved)

	f := flow.New(topology.FlowKey{Src: ip2, Dst: ip2}, "s1", "s4", 1000, 10, 0)
	f.Status = flow.Active
	f.Path = []string{"s1", "s2", "s4"}
	f.Links = topo.LinksOnPath(f.Path)
	ctrl.Install(f, f.Path, f.Links)

	// Second pass: f outranks g for the single reroute slot, but g is
	// already old-managed and, under comB, consumes the s1-s2-s4 path's
	// capacity, making s1-s3-s4 score strictly higher for f.
	g.Cnt = 0
	f.Cnt = 100
	ctrl.Sample(1, []*flow.Flow{f, g})
	moved := ctrl.Reroute(1, []*flow.Flow{f, g})

	require.Len(t, moved, 1)
	assert.Equal(t, f, moved[0])
	assert.Equal(t, []string{"s1", "s3", "s4"}, f.Path)
	assert.Equal(t, 1, f.Reroute)
	assert.Equal(t, []string{"s1", "s2", "s4"}, g.Path)
	assert.Equal(t, 0, g.Reroute)
}
