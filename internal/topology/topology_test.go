package topology

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsHostBlocksAsNextPowerOfTwo(t *testing.T) {
	topo, err := New(
		[]NodeSpec{{Name: "s1", TableSize: 4, NHosts: 3}, {Name: "s2", TableSize: 4, NHosts: 1}},
		[]LinkSpec{{Node1: "s1", Node2: "s2", Cap: 10}},
	)
	require.NoError(t, err)

	s1 := topo.MustNode("s1")
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), s1.BaseIP)
	assert.Equal(t, netip.MustParseAddr("10.0.0.3"), s1.EndIP)

	s2 := topo.MustNode("s2")
	// s1's block rounds up to 4, so s2 starts at offset 4 from 10.0.0.1.
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), s2.BaseIP)

	assert.Equal(t, "s1", topo.Hosts[netip.MustParseAddr("10.0.0.2")])
	assert.Equal(t, "s2", topo.Hosts[netip.MustParseAddr("10.0.0.5")])
}

func TestLinkIsAliasedByEitherEndpointOrder(t *testing.T) {
	topo, err := New(
		[]NodeSpec{{Name: "a"}, {Name: "b"}},
		[]LinkSpec{{Node1: "a", Node2: "b", Cap: 5}},
	)
	require.NoError(t, err)

	l1, ok := topo.Link("a", "b")
	require.True(t, ok)
	l2, ok := topo.Link("b", "a")
	require.True(t, ok)
	assert.Same(t, l1, l2)
}

func TestNewRejectsSelfLoopNegativeCapAndUnknownNode(t *testing.T) {
	_, err := New([]NodeSpec{{Name: "a"}}, []LinkSpec{{Node1: "a", Node2: "a", Cap: 1}})
	assert.ErrorIs(t, err, ErrSelfLoop)

	_, err = New([]NodeSpec{{Name: "a"}, {Name: "b"}}, []LinkSpec{{Node1: "a", Node2: "b", Cap: -1}})
	assert.ErrorIs(t, err, ErrNegativeCapacity)

	_, err = New([]NodeSpec{{Name: "a"}}, []LinkSpec{{Node1: "a", Node2: "ghost", Cap: 1}})
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestNewRejectsDisconnectedGraph(t *testing.T) {
	_, err := New(
		[]NodeSpec{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		[]LinkSpec{{Node1: "a", Node2: "b", Cap: 1}},
	)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestNodeTableCapacityTracking(t *testing.T) {
	n := &Node{TableSize: 1, Table: make(map[FlowKey]float64)}
	key := FlowKey{Src: netip.MustParseAddr("10.0.0.1"), Dst: netip.MustParseAddr("10.0.0.2")}

	assert.True(t, n.HasCapacity())
	n.InstallEntry(key)
	assert.False(t, n.HasCapacity())
	assert.Equal(t, 1, n.TableUsage())

	n.RemoveEntry(key)
	assert.True(t, n.HasCapacity())
	assert.Equal(t, 0, n.TableUsage())
}
