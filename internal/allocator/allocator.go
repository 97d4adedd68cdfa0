// Package allocator implements max-min fair bandwidth allocation
// across the active flow set, with an optional per-flow source-rate
// cap (spec.md §4.5), grounded on SimCoreCalculation.py's bottleneck
// iteration: repeatedly identify the most-constrained link, freeze the
// rate of every flow that link forces, and repeat on the remainder.
package allocator

import (
	"math"
	"sort"

	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

// Result is one allocator pass's outcome: every active flow's rate has
// been committed via flow.Update, and NextEndTime/NextEndFlow name the
// soonest projected completion — the out-of-band side channel the
// engine's dispatcher consults instead of pushing a FlowEnd onto the
// event heap (spec.md §4.1).
type Result struct {
	NextEndTime float64
	NextEndFlow *flow.Flow
}

// CalcSrcLimited runs max-min fair allocation honoring each flow's
// FlowRate as a hard source-rate cap (spec.md §4.5 "source-limited").
func CalcSrcLimited(topo *topology.Topology, flows []*flow.Flow, evTime float64) Result {
	return run(topo, flows, evTime, true)
}

// CalcSrcUnlimited runs max-min fair allocation ignoring source-rate
// caps entirely — every flow competes only against link capacity
// (spec.md §4.5 "source-unlimited").
func CalcSrcUnlimited(topo *topology.Topology, flows []*flow.Flow, evTime float64) Result {
	return run(topo, flows, evTime, false)
}

func run(topo *topology.Topology, flows []*flow.Flow, evTime float64, srcLimited bool) Result {
	if topo != nil {
		for _, l := range topo.Links() {
			l.UnassignedBW = l.Cap
			l.NActiveFlows = 0
			l.NUnassignedFlows = 0
			l.BWPerFlow = 0
		}
	}

	active := make([]*flow.Flow, 0, len(flows))
	for _, f := range flows {
		if f.Status == flow.Active {
			active = append(active, f)
		}
	}

	rates := resetAndSolve(active, srcLimited)

	result := Result{NextEndTime: math.Inf(1)}
	for _, f := range active {
		f.Assigned = false
	}
	for f, rate := range rates {
		end, _ := f.Update(evTime, rate)
		if end < result.NextEndTime {
			result.NextEndTime = end
			result.NextEndFlow = f
		}
	}
	return result
}

// resetAndSolve resets per-link scratch bookkeeping for the links any
// active flow touches, then solves for each flow's fair rate.
func resetAndSolve(active []*flow.Flow, srcLimited bool) map[*flow.Flow]float64 {
	touched := map[*topology.Link]bool{}
	for _, f := range active {
		for _, l := range f.Links {
			touched[l] = true
		}
	}
	for l := range touched {
		l.NActiveFlows = 0
	}
	for _, f := range active {
		for _, l := range f.Links {
			l.NActiveFlows++
		}
	}
	for l := range touched {
		l.UnassignedBW = l.Cap
		l.NUnassignedFlows = l.NActiveFlows
		if l.NUnassignedFlows > 0 {
			l.BWPerFlow = l.UnassignedBW / float64(l.NUnassignedFlows)
		}
	}

	rates := make(map[*flow.Flow]float64, len(active))
	unassigned := append([]*flow.Flow(nil), active...)

	// Flows are sorted once, ascending by source-rate cap, so the
	// smallest still-unassigned cap is always at index 0; assigned
	// flows are dropped from the slice without re-sorting.
	if srcLimited {
		sort.Slice(unassigned, func(i, j int) bool { return unassigned[i].FlowRate < unassigned[j].FlowRate })
	}

	for len(unassigned) > 0 {
		bottleneckLink, bottleneckRate := minBWPerFlow(touched)
		if bottleneckLink == nil {
			// No link still carries an unassigned flow but unassigned
			// is non-empty: remaining flows are disconnected from any
			// touched link (should not happen); give them zero rate.
			for _, f := range unassigned {
				rates[f] = 0
			}
			break
		}

		if srcLimited && unassigned[0].FlowRate <= bottleneckRate {
			f := unassigned[0]
			unassigned = unassigned[1:]
			rates[f] = f.FlowRate
			releaseLinks(f, f.FlowRate)
			continue
		}

		var settled []*flow.Flow
		remaining := unassigned[:0:0]
		for _, f := range unassigned {
			if onLink(f, bottleneckLink) {
				settled = append(settled, f)
			} else {
				remaining = append(remaining, f)
			}
		}
		unassigned = remaining
		for _, f := range settled {
			rates[f] = bottleneckRate
			releaseLinks(f, bottleneckRate)
		}
	}

	return rates
}

// minBWPerFlow scans touched links with at least one unassigned flow
// and returns the one with the smallest per-flow fair share.
func minBWPerFlow(touched map[*topology.Link]bool) (*topology.Link, float64) {
	var best *topology.Link
	bestRate := math.Inf(1)
	for l := range touched {
		if l.NUnassignedFlows == 0 {
			continue
		}
		rate := l.UnassignedBW / float64(l.NUnassignedFlows)
		if rate < bestRate {
			bestRate = rate
			best = l
		}
	}
	return best, bestRate
}

func onLink(f *flow.Flow, l *topology.Link) bool {
	for _, fl := range f.Links {
		if fl == l {
			return true
		}
	}
	return false
}

// releaseLinks removes f from every link's unassigned bookkeeping once
// its rate has been fixed, debiting the bandwidth it now holds.
func releaseLinks(f *flow.Flow, rate float64) {
	for _, l := range f.Links {
		l.NUnassignedFlows--
		l.UnassignedBW -= rate
		if l.UnassignedBW < 0 {
			l.UnassignedBW = 0
		}
	}
}
