package flowgen

import (
	"math"
	"math/rand/v2"
	"net/netip"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kychen/flowsim/internal/topology"
)

func twoEdgeTopo(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.New(
		[]topology.NodeSpec{{Name: "s1", TableSize: 4, NHosts: 3}, {Name: "s2", TableSize: 4, NHosts: 1}},
		[]topology.LinkSpec{{Node1: "s1", Node2: "s2", Cap: 100}},
	)
	require.NoError(t, err)
	return topo
}

func TestNextAlwaysPicksDistinctEdgeSwitchesAndValidHosts(t *testing.T) {
	topo := twoEdgeTopo(t)
	cfg := Config{SrcDst: Uniform, Size: UniformSize, SizeMin: 10, SizeMax: 20, Arrival: Const, ConstInterval: 5, RateCap: math.Inf(1)}
	g := New(topo, cfg, rand.New(rand.NewPCG(1, 2)))

	now := 0.0
	for i := 0; i < 20; i++ {
		a, next := g.Next(now, nil)
		assert.NotEqual(t, a.SrcNode, a.DstNode)
		sw, ok := topo.Hosts[a.SrcIP]
		require.True(t, ok)
		assert.Equal(t, a.SrcNode, sw)
		assert.GreaterOrEqual(t, a.Size, 10.0)
		assert.LessOrEqual(t, a.Size, 20.0)
		assert.Equal(t, now+5, next)
		now = next
	}
}

func TestBimodalSizeOnlyProducesConfiguredValues(t *testing.T) {
	topo := twoEdgeTopo(t)
	cfg := Config{SrcDst: Uniform, Size: Bimodal, BimodalSmallProb: 0.5, BimodalSmallSize: 1000, BimodalLargeSize: 1e6, Arrival: Saturate, RateCap: math.Inf(1)}
	g := New(topo, cfg, rand.New(rand.NewPCG(7, 9)))

	for i := 0; i < 30; i++ {
		a, next := g.Next(0, nil)
		assert.Contains(t, []float64{1000, 1e6}, a.Size)
		assert.Equal(t, 0.0, next)
	}
}

func TestGravityPicksDistinctEdgeSwitches(t *testing.T) {
	topo := twoEdgeTopo(t)
	cfg := Config{SrcDst: Gravity, Size: UniformSize, SizeMin: 1, SizeMax: 1, Arrival: Saturate, RateCap: math.Inf(1)}
	g := New(topo, cfg, rand.New(rand.NewPCG(3, 4)))

	a, _ := g.Next(0, nil)
	assert.NotEqual(t, a.SrcNode, a.DstNode)
}

func TestNextFromSourceAvoidsTrackedPairWhenAlternativeExists(t *testing.T) {
	topo, err := topology.New(
		[]topology.NodeSpec{{Name: "s1", TableSize: 4, NHosts: 2}, {Name: "s2", TableSize: 4, NHosts: 2}},
		[]topology.LinkSpec{{Node1: "s1", Node2: "s2", Cap: 100}},
	)
	require.NoError(t, err)
	cfg := Config{SrcDst: Uniform, Size: UniformSize, SizeMin: 1, SizeMax: 1, Arrival: Saturate, RateCap: math.Inf(1)}
	g := New(topo, cfg, rand.New(rand.NewPCG(11, 13)))

	var s1Hosts []netip.Addr
	for ip, sw := range topo.Hosts {
		if sw == "s1" {
			s1Hosts = append(s1Hosts, ip)
		}
	}
	sort.Slice(s1Hosts, func(i, j int) bool { return s1Hosts[i].Less(s1Hosts[j]) })
	src := s1Hosts[0]

	tracked := make(map[topology.FlowKey]struct{})
	var free netip.Addr
	for ip, sw := range topo.Hosts {
		if sw != "s2" {
			continue
		}
		if free == (netip.Addr{}) {
			free = ip
			continue
		}
		tracked[topology.FlowKey{Src: src, Dst: ip}] = struct{}{}
	}

	a := g.NextFromSource(0, "s1", src, tracked)
	assert.Equal(t, free, a.DstIP)
}

func TestInitialArrivalsSaturateSeedsOnePerHost(t *testing.T) {
	topo := twoEdgeTopo(t) // 3+1 = 4 hosts
	cfg := Config{SrcDst: Uniform, Size: UniformSize, SizeMin: 1, SizeMax: 1, Arrival: Saturate, InitSpread: 2, RateCap: math.Inf(1)}
	g := New(topo, cfg, rand.New(rand.NewPCG(5, 6)))

	arrivals := g.InitialArrivals()
	assert.Len(t, arrivals, 4)
	for _, ta := range arrivals {
		assert.GreaterOrEqual(t, ta.Time, 0.0)
		assert.Less(t, ta.Time, 2.0)
		assert.NotEqual(t, ta.Arrival.SrcNode, ta.Arrival.DstNode)
	}
}

func TestConstCutoffWidensInterarrivalAroundConstInterval(t *testing.T) {
	topo := twoEdgeTopo(t)
	cfg := Config{SrcDst: Uniform, Size: UniformSize, SizeMin: 1, SizeMax: 1, Arrival: Const, ConstInterval: 10, Cutoff: 0.2, RateCap: math.Inf(1)}
	g := New(topo, cfg, rand.New(rand.NewPCG(21, 22)))

	for i := 0; i < 30; i++ {
		_, next := g.Next(0, nil)
		assert.GreaterOrEqual(t, next, 8.0)
		assert.LessOrEqual(t, next, 12.0)
	}
}
