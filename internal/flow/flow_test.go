package flow

import (
	"math"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kychen/flowsim/internal/topology"
)

func newTestFlow() *Flow {
	ip := netip.MustParseAddr("10.0.0.1")
	return New(topology.FlowKey{Src: ip, Dst: ip}, "s1", "s2", 100, math.Inf(1), 0)
}

func TestNewStartsRequestingWithFullBytesLeft(t *testing.T) {
	f := newTestFlow()
	assert.Equal(t, Requesting, f.Status)
	assert.Equal(t, 100.0, f.BytesLeft)
	assert.Equal(t, 0.0, f.BytesSent)
}

func TestUpdateAccountsBytesAndProjectsEnd(t *testing.T) {
	f := newTestFlow()
	f.Status = Active
	projectedEnd, sent := f.Update(0, 10)
	assert.Equal(t, 0.0, sent)
	assert.InDelta(t, 10, projectedEnd, 1e-9) // 100 bytes / 10 B/s

	_, sent = f.Update(5, 10)
	assert.InDelta(t, 50, sent, 1e-9)
	assert.InDelta(t, 50, f.BytesLeft, 1e-9)
	assert.InDelta(t, 50, f.BytesSent, 1e-9)
}

func TestUpdateZeroRateProjectsInfiniteEnd(t *testing.T) {
	f := newTestFlow()
	f.Status = Active
	end, _ := f.Update(0, 0)
	assert.True(t, math.IsInf(end, 1))
}

func TestAdvanceIsNoopWhenNotActive(t *testing.T) {
	f := newTestFlow()
	f.CurrRate = 10
	f.Advance(5)
	assert.Equal(t, 100.0, f.BytesLeft)
}

func TestFinishZeroesBytesLeftAndSetsDuration(t *testing.T) {
	f := newTestFlow()
	f.Status = Active
	f.Update(0, 10)
	f.Finish(10)

	assert.Equal(t, Finished, f.Status)
	assert.Equal(t, 0.0, f.BytesLeft)
	assert.Equal(t, 10.0, f.Duration)
	assert.InDelta(t, 10, f.AvgRate, 1e-9)
}
