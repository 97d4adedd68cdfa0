package engine

import (
	"math"
	"net/netip"

	"github.com/kychen/flowsim/internal/allocator"
	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

// Arrival describes one freshly generated flow request, produced by an
// ArrivalSource (implemented by internal/flowgen) at FlowArrival time.
type Arrival struct {
	SrcIP, DstIP     netip.Addr
	SrcNode, DstNode string
	Size, Rate       float64
}

// TimedArrival pairs an Arrival with the heap time it should fire at,
// used to seed the queue before the dispatch loop starts.
type TimedArrival struct {
	Time    float64
	Arrival Arrival
}

// ArrivalSource generates the flow-arrival process (spec.md §4.7). Its
// pacing is mode-dependent: saturate mode seeds one flow per host and
// is driven thereafter only by FlowEnd (NextFromSource); const/exp
// modes seed a single flow and self-reschedule from FlowArrival (Next).
type ArrivalSource interface {
	// InitialArrivals seeds the queue before the dispatch loop starts
	// (spec.md §4.7 "gen_init_flows").
	InitialArrivals() []TimedArrival

	// Next produces the flow that follows a self-rescheduled
	// FlowArrival, rejection-sampling against tracked until an unused
	// (src,dst) pair is produced (spec.md §4.7, §3 "at most one flow
	// per pair"). Only called when Saturate() is false.
	Next(now float64, tracked map[topology.FlowKey]struct{}) (arrival Arrival, nextArrivalTime float64)

	// NextFromSource synthesizes the flow that replaces one just ended
	// at srcIP, keeping the same source host (spec.md §4.4
	// handle_EvFlowEnd / §4.7 gen_new_flow_with_src). Only called when
	// Saturate() is true.
	NextFromSource(now float64, srcNode string, srcIP netip.Addr, tracked map[topology.FlowKey]struct{}) Arrival

	// Saturate reports whether arrivals are paced by FlowEnd (true) or
	// by self-rescheduled FlowArrival events (false).
	Saturate() bool
}

// Controller is the subset of internal/controller's behavior the
// engine drives: path selection, admission feasibility, table
// install/evict, and the periodic elephant-flow rerouter (spec.md
// §4.3, §4.6).
type Controller interface {
	FindPath(topo *topology.Topology, srcNode, dstNode string) ([]string, []*topology.Link, error)
	IsFeasible(path []string) bool
	Install(f *flow.Flow, path []string, links []*topology.Link)
	Evict(f *flow.Flow)
	Reroute(now float64, active []*flow.Flow) []*flow.Flow

	// Sample hands the controller each flow's byte count accumulated
	// since the previous CollectCnt tick, for elephant-flow ranking
	// (spec.md §4.6). The engine zeroes Flow.Cnt immediately after.
	Sample(now float64, tracked []*flow.Flow)
}

// StatsSink receives periodic and per-flow observations for CSV/metric
// export (internal/stats implements this).
type StatsSink interface {
	LogLinkUtil(now float64, topo *topology.Topology)
	LogTableUtil(now float64, topo *topology.Topology)
	RecordFlow(f *flow.Flow)
}

// Config holds every timing parameter the dispatch loop needs
// (spec.md §6); zero-valued intervals disable that periodic event.
type Config struct {
	SrcLimited         bool
	IdleTimeout        float64
	RetryInterval      float64
	CollectInterval    float64
	RerouteInterval    float64
	LinkUtilInterval   float64
	TableUtilInterval  float64
	MaxTime            float64 // <=0 means unbounded
}

// Simulation owns the event queue, the live flow population, and the
// dual-clock dispatch loop (spec.md §4.1).
type Simulation struct {
	cfg      Config
	topo     *topology.Topology
	ctrl     Controller
	arrivals ArrivalSource
	stats    StatsSink

	queue *Queue

	active   map[topology.FlowKey]*flow.Flow
	tracked  map[topology.FlowKey]*flow.Flow // Requesting through Finished, pending IdleTimeout eviction

	nextEndTime float64
	nextEndFlow *flow.Flow

	now float64
}

// New builds a Simulation ready to Run.
func New(topo *topology.Topology, ctrl Controller, arrivals ArrivalSource, stats StatsSink, cfg Config) *Simulation {
	return &Simulation{
		cfg:         cfg,
		topo:        topo,
		ctrl:        ctrl,
		arrivals:    arrivals,
		stats:       stats,
		queue:       NewQueue(),
		active:      make(map[topology.FlowKey]*flow.Flow),
		tracked:     make(map[topology.FlowKey]*flow.Flow),
		nextEndTime: math.Inf(1),
	}
}

// Run drives the dispatch loop to completion (no more events, no
// projected flow end, or cfg.MaxTime reached).
func (s *Simulation) Run() {
	s.scheduleInitial()

	for {
		heapTime, hasHeap := s.queue.PeekTime()
		hasEnd := s.nextEndFlow != nil && !math.IsInf(s.nextEndTime, 1)

		var chosen float64
		useEnd := false
		switch {
		case !hasHeap && !hasEnd:
			return
		case hasHeap && hasEnd:
			if s.nextEndTime <= heapTime {
				chosen, useEnd = s.nextEndTime, true
			} else {
				chosen = heapTime
			}
		case hasEnd:
			chosen, useEnd = s.nextEndTime, true
		default:
			chosen = heapTime
		}

		if s.cfg.MaxTime > 0 && chosen > s.cfg.MaxTime {
			return
		}

		// The chosen event's own time is authoritative for the
		// simulation clock even when it is the synthesized FlowEnd,
		// not the heap's current top — the original's timer bug is
		// the reverse (always trusting the heap top) and is not
		// reproduced here (spec.md §9).
		s.now = chosen
		s.advanceActive(s.now)

		if useEnd {
			f := s.nextEndFlow
			s.handleFlowEnd(f)
		} else {
			s.handle(s.queue.PopEvent())
		}

		s.recalcAllocation()
	}
}

func (s *Simulation) advanceActive(now float64) {
	for _, f := range s.active {
		f.Advance(now)
	}
}

func (s *Simulation) recalcAllocation() {
	flows := make([]*flow.Flow, 0, len(s.active))
	for _, f := range s.active {
		flows = append(flows, f)
	}
	var res allocator.Result
	if s.cfg.SrcLimited {
		res = allocator.CalcSrcLimited(s.topo, flows, s.now)
	} else {
		res = allocator.CalcSrcUnlimited(s.topo, flows, s.now)
	}
	s.nextEndTime = res.NextEndTime
	s.nextEndFlow = res.NextEndFlow
}

// trackedKeys snapshots every (src,dst) pair currently in the system
// (Requesting through Finished, pending IdleTimeout) so an ArrivalSource
// can rejection-sample against it (spec.md §3 "at most one flow per
// pair").
func (s *Simulation) trackedKeys() map[topology.FlowKey]struct{} {
	keys := make(map[topology.FlowKey]struct{}, len(s.tracked))
	for k := range s.tracked {
		keys[k] = struct{}{}
	}
	return keys
}

func (s *Simulation) handle(ev *Event) {
	switch ev.Type {
	case FlowArrival:
		s.handleFlowArrival(ev.Arrival)
	case PacketIn:
		s.handlePacketIn(ev.Flow)
	case FlowInstall:
		s.handleFlowInstall(ev.Flow)
	case IdleTimeout:
		s.handleIdleTimeout(ev.Flow)
	case CollectCnt:
		s.handleCollectCnt()
	case Reroute:
		s.handleReroute()
	case LogLinkUtil:
		s.stats.LogLinkUtil(s.now, s.topo)
		if s.cfg.LinkUtilInterval > 0 {
			s.queue.Schedule(s.now+s.cfg.LinkUtilInterval, LogLinkUtil, nil)
		}
	case LogTableUtil:
		s.stats.LogTableUtil(s.now, s.topo)
		if s.cfg.TableUtilInterval > 0 {
			s.queue.Schedule(s.now+s.cfg.TableUtilInterval, LogTableUtil, nil)
		}
	}
}

func (s *Simulation) scheduleInitial() {
	for _, ta := range s.arrivals.InitialArrivals() {
		s.queue.ScheduleArrival(ta.Time, ta.Arrival)
	}
	if s.cfg.CollectInterval > 0 {
		s.queue.Schedule(s.cfg.CollectInterval, CollectCnt, nil)
	}
	if s.cfg.RerouteInterval > 0 {
		s.queue.Schedule(s.cfg.RerouteInterval, Reroute, nil)
	}
	if s.cfg.LinkUtilInterval > 0 {
		s.queue.Schedule(s.cfg.LinkUtilInterval, LogLinkUtil, nil)
	}
	if s.cfg.TableUtilInterval > 0 {
		s.queue.Schedule(s.cfg.TableUtilInterval, LogTableUtil, nil)
	}
}
