// Package flow defines the per-flow state machine and byte-accounting
// used by the simulator core (spec.md §3 "Flow").
package flow

import (
	"math"

	"github.com/kychen/flowsim/internal/topology"
)

// Status is a flow's lifecycle stage.
type Status int

const (
	// Requesting: created at arrival, awaiting path selection/install.
	Requesting Status = iota
	// Active: installed on a path, transmitting.
	Active
	// Finished: byte transfer complete, entries not yet evicted.
	Finished
	// Removed: evicted from every table after the idle timeout.
	Removed
)

// String renders the status the way the original's status strings did.
func (s Status) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case Active:
		return "active"
	case Finished:
		return "finished"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Flow is one (src_ip,dst_ip) flow's full record: identities, sizing,
// progress, lifecycle timestamps, routing, status and counters
// (spec.md §3, fields verbatim).
type Flow struct {
	Key topology.FlowKey

	SrcNode string
	DstNode string

	FlowSize float64 // bytes to transmit
	FlowRate float64 // source cap, B/s (+Inf if unlimited)
	CurrRate float64 // currently allocated rate
	AvgRate  float64

	BytesSent float64
	BytesLeft float64

	ArriveTime   float64
	InstallTime  float64
	EndTime      float64
	RemoveTime   float64
	UpdateTime   float64
	CollectTime  float64
	Duration     float64

	Path  []string
	Links []*topology.Link

	Status Status

	Resend  int
	Reroute int

	// Cnt is the instantaneous byte counter since the last CollectCnt,
	// consulted (and reset) by the elephant rerouter (spec.md §4.6).
	Cnt float64

	// Assigned is allocator scratch space: true once this flow's
	// CurrRate has been fixed during the current pass (spec.md §3,
	// "transient bookkeeping").
	Assigned bool
}

// New creates a Requesting flow for a freshly arrived (src,dst) pair.
func New(key topology.FlowKey, srcNode, dstNode string, size, rate, arriveTime float64) *Flow {
	return &Flow{
		Key:        key,
		SrcNode:    srcNode,
		DstNode:    dstNode,
		FlowSize:   size,
		FlowRate:   rate,
		BytesLeft:  size,
		ArriveTime: arriveTime,
		UpdateTime: arriveTime,
		EndTime:    -1,
		RemoveTime: -1,
		Status:     Requesting,
	}
}

// Update advances the flow's byte accounting to evTime at the given
// rate, returning the projected completion time (+Inf if rate<=0) and
// the bytes sent since the previous update — the Go analogue of the
// original's SimFlow.update_flow, invoked once per allocator
// assignment (spec.md §4.5).
func (f *Flow) Update(evTime, rate float64) (projectedEnd, bytesSentDelta float64) {
	elapsed := evTime - f.UpdateTime
	bytesSentDelta = f.CurrRate * elapsed
	if bytesSentDelta > f.BytesLeft {
		bytesSentDelta = f.BytesLeft
	}
	f.BytesLeft -= bytesSentDelta
	f.BytesSent = f.FlowSize - f.BytesLeft
	f.UpdateTime = evTime
	f.CurrRate = rate
	if evTime > f.ArriveTime {
		f.AvgRate = f.BytesSent / (evTime - f.ArriveTime)
	}
	f.Assigned = true

	if rate <= 0 {
		return math.Inf(1), bytesSentDelta
	}
	return evTime + f.BytesLeft/rate, bytesSentDelta
}

// Advance moves byte accounting forward to evTime at the flow's
// current (already-assigned) rate without changing CurrRate — used by
// the dispatcher before every handler to keep bytes_sent/bytes_left
// current (spec.md §4.1).
func (f *Flow) Advance(evTime float64) {
	if f.Status != Active {
		return
	}
	elapsed := evTime - f.UpdateTime
	if elapsed <= 0 {
		return
	}
	sent := f.CurrRate * elapsed
	if sent > f.BytesLeft {
		sent = f.BytesLeft
	}
	f.BytesLeft -= sent
	f.BytesSent = f.FlowSize - f.BytesLeft
	f.Cnt += sent
	f.UpdateTime = evTime
	if evTime > f.ArriveTime {
		f.AvgRate = f.BytesSent / (evTime - f.ArriveTime)
	}
}

// Finish marks the flow Finished at evTime: zeroes BytesLeft, records
// EndTime/Duration/AvgRate (spec.md §4.4 FlowEnd).
func (f *Flow) Finish(evTime float64) {
	f.Status = Finished
	f.BytesLeft = 0
	f.BytesSent = f.FlowSize
	f.EndTime = evTime
	f.Duration = evTime - f.ArriveTime
	if f.Duration > 0 {
		f.AvgRate = f.FlowSize / f.Duration
	}
}
