package controller

import (
	"sort"

	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

// ReroutePolicy selects the scoring rule the elephant rerouter uses to
// judge a candidate path (spec.md §4.6).
type ReroutePolicy int

const (
	// PolicyOAB ("old-aware bandwidth") classifies each link's old
	// elephants into a "tilde set" of flows that would still be
	// bottlenecked if the new flow joined, and scores the link by the
	// residual capacity split among that set plus the newcomer.
	PolicyOAB ReroutePolicy = iota
	// PolicyGreedy scores a link by its capacity split evenly among its
	// old elephants plus the newcomer, ignoring their individual shares.
	PolicyGreedy
)

// Sample records each tracked flow's byte count since the previous
// CollectCnt tick, ranking material for the next Reroute pass (spec.md
// §4.6 "byte counter sampling").
func (c *Controller) Sample(now float64, tracked []*flow.Flow) {
	for _, f := range tracked {
		c.lastSample[f.Key] = f.Cnt
	}
}

// pruneOldElephants drops any previously-managed elephant that is no
// longer active, so Evict isn't the only place c.oldElephants can lose
// an entry (spec.md §3 "old_elephant_flows").
func (c *Controller) pruneOldElephants(byKey map[topology.FlowKey]*flow.Flow) {
	for k := range c.oldElephants {
		if _, ok := byKey[k]; !ok {
			delete(c.oldElephants, k)
		}
	}
}

// managedFlows resolves c.oldElephants' keys back to live flows.
func (c *Controller) managedFlows(byKey map[topology.FlowKey]*flow.Flow) []*flow.Flow {
	managed := make([]*flow.Flow, 0, len(c.oldElephants))
	for k := range c.oldElephants {
		if f, ok := byKey[k]; ok {
			managed = append(managed, f)
		}
	}
	return managed
}

// Reroute reassigns the topN highest-sampled ("new elephant") active
// flows not already under management to a better-scoring alternate
// path, when one exists and is feasible, and returns the flows actually
// moved (spec.md §4.6). Each processed flow then joins
// c.oldElephants, the controller-side mirror of the rerouter's old-
// elephant set (spec.md §3).
func (c *Controller) Reroute(now float64, active []*flow.Flow) []*flow.Flow {
	if c.topN <= 0 || len(active) == 0 {
		return nil
	}

	byKey := make(map[topology.FlowKey]*flow.Flow, len(active))
	for _, f := range active {
		byKey[f.Key] = f
	}
	c.pruneOldElephants(byKey)

	ranked := append([]*flow.Flow(nil), active...)
	sort.Slice(ranked, func(i, j int) bool { return c.lastSample[ranked[i].Key] > c.lastSample[ranked[j].Key] })
	if len(ranked) > c.topN {
		ranked = ranked[:c.topN]
	}

	var moved []*flow.Flow
	for _, f := range ranked {
		if _, alreadyManaged := c.oldElephants[f.Key]; alreadyManaged {
			continue
		}

		// comB: recompute max-min fair shares over only the old
		// elephants, ignoring mice and the other not-yet-processed new
		// elephants this pass (spec.md §4.6 step 4).
		managed := c.managedFlows(byKey)
		shares := comB(managed)

		candidates, err := c.rdb.Paths(f.SrcNode, f.DstNode)
		if err != nil || len(candidates) < 2 {
			c.oldElephants[f.Key] = 0
			continue
		}

		bestPath, bestLinks := f.Path, f.Links
		bestScore := c.pathScore(f.Links, managed, shares)

		for _, cand := range candidates {
			if pathEqual(cand, f.Path) || !c.IsFeasible(cand) {
				continue
			}
			links := c.topo.LinksOnPath(cand)
			if score := c.pathScore(links, managed, shares); score > bestScore {
				bestScore, bestPath, bestLinks = score, cand, links
			}
		}

		if !pathEqual(bestPath, f.Path) {
			c.removeFromTables(f)
			c.Install(f, bestPath, bestLinks)
			f.Reroute++
			moved = append(moved, f)
		}

		// Insert the newly managed flow with share 0, updated at the
		// next comB (spec.md §4.6 step 5).
		c.oldElephants[f.Key] = 0
	}

	return moved
}

// pathScore is the bottleneck (minimum) per-link score along a path,
// dispatched to the configured reroute policy (spec.md §4.6).
func (c *Controller) pathScore(links []*topology.Link, managed []*flow.Flow, shares map[topology.FlowKey]float64) float64 {
	best := maxFloat
	for _, l := range links {
		var s float64
		if c.reroutePolicy == PolicyOAB {
			s = oabLinkScore(l, managed, shares)
		} else {
			s = greedyLinkScore(l, managed)
		}
		if s < best {
			best = s
		}
	}
	return best
}

// linkAllocsOn collects the old elephants on l, returning their comB
// shares.
func linkAllocsOn(l *topology.Link, managed []*flow.Flow, shares map[topology.FlowKey]float64) []float64 {
	var allocs []float64
	for _, f := range managed {
		for _, fl := range f.Links {
			if fl == l {
				allocs = append(allocs, shares[f.Key])
				break
			}
		}
	}
	return allocs
}

// greedyLinkScore splits l's capacity evenly among its old elephants
// plus the newcomer (spec.md §4.6 "greedy... cap/(n+1)").
func greedyLinkScore(l *topology.Link, managed []*flow.Flow) float64 {
	n := 0
	for _, f := range managed {
		for _, fl := range f.Links {
			if fl == l {
				n++
				break
			}
		}
	}
	return l.Cap / float64(n+1)
}

// oabLinkScore computes OAB_L = (cap_L - Σ_{f∉T} a_f) / (|T|+1), where
// T is built by iteratively excluding, from the sorted-descending
// allocations of l's old elephants, every flow whose current share
// exceeds the residual it would leave behind if excluded (spec.md §4.6
// step 4's "tilde set" classification).
func oabLinkScore(l *topology.Link, managed []*flow.Flow, shares map[topology.FlowKey]float64) float64 {
	allocs := linkAllocsOn(l, managed, shares)
	sort.Sort(sort.Reverse(sort.Float64Slice(allocs)))

	excludedSum := 0.0
	excludedCount := 0
	n := len(allocs)
	for i := 0; i < n; i++ {
		residualIfExcluded := (l.Cap - excludedSum - allocs[i]) / float64(n-excludedCount)
		if allocs[i] > residualIfExcluded {
			excludedSum += allocs[i]
			excludedCount++
			continue
		}
		break
	}

	tSize := n - excludedCount
	return (l.Cap - excludedSum) / float64(tSize+1)
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
