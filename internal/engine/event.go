// Package engine implements the discrete-event dispatch loop: a
// container/heap priority queue of scheduled events, plus an
// out-of-band "next flow completion" side channel that lets the
// allocator's projected end times interleave with the heap without
// ever being pushed onto it (spec.md §4.1).
package engine

import (
	"container/heap"

	"github.com/kychen/flowsim/internal/flow"
)

// Type discriminates the kinds of scheduled events (spec.md §4.1).
type Type int

const (
	FlowArrival Type = iota
	PacketIn
	FlowInstall
	IdleTimeout
	CollectCnt
	Reroute
	LogLinkUtil
	LogTableUtil
)

func (t Type) String() string {
	switch t {
	case FlowArrival:
		return "flow_arrival"
	case PacketIn:
		return "packet_in"
	case FlowInstall:
		return "flow_install"
	case IdleTimeout:
		return "idle_timeout"
	case CollectCnt:
		return "collect_cnt"
	case Reroute:
		return "reroute"
	case LogLinkUtil:
		return "log_link_util"
	case LogTableUtil:
		return "log_table_util"
	default:
		return "unknown"
	}
}

// Event is one entry on the heap. Flow is nil for global periodic
// events (CollectCnt, Reroute, the Log* events) and for FlowArrival,
// which instead carries the not-yet-created flow's request in Arrival.
type Event struct {
	Time    float64
	Seq     uint64 // FIFO tie-breaker for same-time events
	Type    Type
	Flow    *flow.Flow
	Arrival *Arrival
}

// Queue is a min-heap of *Event ordered by (Time, Seq), the Go
// analogue of the original's heapq-backed event list (grounded on the
// teacher's container/heap usage pattern in algorithms/ for
// priority-ordered traversal).
type Queue struct {
	items []*Event
	seq   uint64
}

// NewQueue returns an empty event queue.
func NewQueue() *Queue {
	q := &Queue{}
	heap.Init(q)
	return q
}

// Len, Less, Swap, Push, Pop implement heap.Interface.
func (q *Queue) Len() int { return len(q.items) }
func (q *Queue) Less(i, j int) bool {
	if q.items[i].Time != q.items[j].Time {
		return q.items[i].Time < q.items[j].Time
	}
	return q.items[i].Seq < q.items[j].Seq
}
func (q *Queue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }
func (q *Queue) Push(x any)    { q.items = append(q.items, x.(*Event)) }
func (q *Queue) Pop() any {
	old := q.items
	n := len(old)
	it := old[n-1]
	q.items = old[:n-1]
	return it
}

// Schedule pushes a new event at t, assigning it the next sequence
// number so insertion order breaks ties deterministically.
func (q *Queue) Schedule(t float64, typ Type, f *flow.Flow) *Event {
	q.seq++
	ev := &Event{Time: t, Seq: q.seq, Type: typ, Flow: f}
	heap.Push(q, ev)
	return ev
}

// ScheduleArrival pushes a FlowArrival event carrying a pre-generated
// Arrival payload, used to seed the initial flow set and to synthesize
// a saturate-mode replacement flow from FlowEnd (spec.md §4.4, §4.7).
func (q *Queue) ScheduleArrival(t float64, a Arrival) *Event {
	q.seq++
	ev := &Event{Time: t, Seq: q.seq, Type: FlowArrival, Arrival: &a}
	heap.Push(q, ev)
	return ev
}

// PeekTime reports the time of the earliest scheduled event, if any.
func (q *Queue) PeekTime() (float64, bool) {
	if len(q.items) == 0 {
		return 0, false
	}
	return q.items[0].Time, true
}

// PopEvent removes and returns the earliest scheduled event.
func (q *Queue) PopEvent() *Event {
	return heap.Pop(q).(*Event)
}
