package allocator

import (
	"math"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

func newActiveFlow(key int, links []*topology.Link, size, rate float64) *flow.Flow {
	ip := netip.AddrFrom4([4]byte{10, 0, 0, byte(key)})
	f := flow.New(topology.FlowKey{Src: ip, Dst: ip}, "s1", "s2", size, rate, 0)
	f.Status = flow.Active
	f.Links = links
	return f
}

func TestCalcSrcUnlimitedSplitsEvenlyOnSharedLink(t *testing.T) {
	link := &topology.Link{A: "s1", B: "s2", Cap: 100, Flows: map[topology.FlowKey]struct{}{}}
	f1 := newActiveFlow(1, []*topology.Link{link}, 1000, math.Inf(1))
	f2 := newActiveFlow(2, []*topology.Link{link}, 1000, math.Inf(1))

	result := CalcSrcUnlimited(nil, []*flow.Flow{f1, f2}, 0)

	assert.InDelta(t, 50, f1.CurrRate, 1e-9)
	assert.InDelta(t, 50, f2.CurrRate, 1e-9)
	assert.InDelta(t, 20, result.NextEndTime, 1e-9)
	assert.True(t, result.NextEndFlow == f1 || result.NextEndFlow == f2)
}

func TestCalcSrcLimitedHonorsSourceCap(t *testing.T) {
	link := &topology.Link{A: "s1", B: "s2", Cap: 100, Flows: map[topology.FlowKey]struct{}{}}
	capped := newActiveFlow(1, []*topology.Link{link}, 1000, 10)
	uncapped := newActiveFlow(2, []*topology.Link{link}, 1000, math.Inf(1))

	CalcSrcLimited(nil, []*flow.Flow{capped, uncapped}, 0)

	assert.InDelta(t, 10, capped.CurrRate, 1e-9)
	assert.InDelta(t, 90, uncapped.CurrRate, 1e-9)
}

func TestCalcSrcLimitedBottleneckAcrossTwoLinks(t *testing.T) {
	shared := &topology.Link{A: "s1", B: "s2", Cap: 60, Flows: map[topology.FlowKey]struct{}{}}
	solo := &topology.Link{A: "s2", B: "s3", Cap: 1000, Flows: map[topology.FlowKey]struct{}{}}

	f1 := newActiveFlow(1, []*topology.Link{shared}, 1000, math.Inf(1))
	f2 := newActiveFlow(2, []*topology.Link{shared}, 1000, math.Inf(1))
	f3 := newActiveFlow(3, []*topology.Link{shared, solo}, 1000, math.Inf(1))

	CalcSrcLimited(nil, []*flow.Flow{f1, f2, f3}, 0)

	assert.InDelta(t, 20, f1.CurrRate, 1e-9)
	assert.InDelta(t, 20, f2.CurrRate, 1e-9)
	assert.InDelta(t, 20, f3.CurrRate, 1e-9)
}

func TestNonActiveFlowsIgnored(t *testing.T) {
	link := &topology.Link{A: "s1", B: "s2", Cap: 100, Flows: map[topology.FlowKey]struct{}{}}
	f1 := newActiveFlow(1, []*topology.Link{link}, 1000, math.Inf(1))
	f2 := newActiveFlow(2, []*topology.Link{link}, 1000, math.Inf(1))
	f2.Status = flow.Requesting

	result := CalcSrcUnlimited(nil, []*flow.Flow{f1, f2}, 0)

	assert.InDelta(t, 100, f1.CurrRate, 1e-9)
	assert.Equal(t, 0.0, f2.CurrRate)
	require.NotNil(t, result.NextEndFlow)
	assert.Equal(t, f1, result.NextEndFlow)
}
