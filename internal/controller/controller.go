// Package controller plays the SDN controller's role: it answers
// PacketIn queries with a selected path, enforces flow-table admission
// control, installs/evicts table entries, and runs the periodic
// elephant-flow rerouter (spec.md §4.3, §4.6), grounded on
// SimCtrl.py/SimCtrlPathDB.py and adapted onto internal/routedb's
// precomputed path sets.
package controller

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/kychen/flowsim/internal/routedb"
	"github.com/kychen/flowsim/internal/topology"
)

// PathMode selects how a path is chosen from a node pair's
// precomputed candidate set (spec.md §6 path_select_mode).
type PathMode int

const (
	// ModeECMP draws via a uniform random walk over the ECMP DAG
	// (requires a RouteDB built with routedb.AllShortest).
	ModeECMP PathMode = iota
	// ModeRandom draws uniformly among the pair's candidate paths that
	// currently have free flow-table capacity on every hop.
	ModeRandom
	// ModeFE ("flow-entry aware") scores every candidate by the
	// convex flow-table-pressure penalty and takes the minimum.
	ModeFE
)

// ErrNoCandidatePaths indicates the RouteDB has no path set for a pair,
// or none of its candidates currently have free flow-table capacity.
var ErrNoCandidatePaths = errors.New("controller: no candidate paths for pair")

// maxPathRetries bounds ModeECMP's retry loop when the walked path
// lands on a saturated switch (spec.md §4.3 "ecmp... restricted to a
// feasible path, retry up to a bounded count").
const maxPathRetries = 10

// Controller implements the engine.Controller interface.
type Controller struct {
	topo          *topology.Topology
	rdb           *routedb.RouteDB
	mode          PathMode
	rng           *rand.Rand
	topN          int
	reroutePolicy ReroutePolicy

	lastSample   map[topology.FlowKey]float64
	oldElephants map[topology.FlowKey]float64
}

// New builds a Controller over a precomputed RouteDB. rng must be
// explicitly threaded (never rand's package-level source) so runs stay
// reproducible under a fixed seed (spec.md §9). topN bounds how many
// elephant candidates Reroute considers each tick.
func New(topo *topology.Topology, rdb *routedb.RouteDB, mode PathMode, reroutePolicy ReroutePolicy, rng *rand.Rand, topN int) *Controller {
	return &Controller{
		topo:          topo,
		rdb:           rdb,
		mode:          mode,
		rng:           rng,
		topN:          topN,
		reroutePolicy: reroutePolicy,
		lastSample:    make(map[topology.FlowKey]float64),
		oldElephants:  make(map[topology.FlowKey]float64),
	}
}

// FindPath selects one path from srcNode to dstNode per c.mode,
// restricted to candidates with free flow-table capacity on every hop,
// and resolves it to the ordered []*topology.Link the engine installs
// (spec.md §4.3). It returns ErrNoCandidatePaths when no feasible path
// exists, whether because the pair has no route at all or because
// every candidate is currently saturated.
func (c *Controller) FindPath(topo *topology.Topology, srcNode, dstNode string) ([]string, []*topology.Link, error) {
	candidates, err := c.rdb.Paths(srcNode, dstNode)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s->%s: %v", ErrNoCandidatePaths, srcNode, dstNode, err)
	}
	if len(candidates) == 0 {
		return nil, nil, fmt.Errorf("%w: %s->%s", ErrNoCandidatePaths, srcNode, dstNode)
	}

	var path []string
	switch c.mode {
	case ModeECMP:
		path = c.walkECMPFeasible(srcNode, dstNode)
	case ModeFE:
		if best := bestByPenalty(topo, candidates); c.IsFeasible(best) {
			path = best
		}
	default: // ModeRandom
		path = c.randomFeasible(candidates)
	}

	if path == nil {
		return nil, nil, fmt.Errorf("%w: %s->%s: no feasible path", ErrNoCandidatePaths, srcNode, dstNode)
	}
	return path, topo.LinksOnPath(path), nil
}

// walkECMPFeasible retries the ECMP random walk up to maxPathRetries
// times, accepting the first feasible path it lands on (spec.md §4.3).
func (c *Controller) walkECMPFeasible(srcNode, dstNode string) []string {
	for i := 0; i < maxPathRetries; i++ {
		p := c.rdb.WalkECMP(srcNode, dstNode, func(n int) int { return int(c.rng.IntN(n)) })
		if p == nil {
			return nil
		}
		if c.IsFeasible(p) {
			return p
		}
	}
	return nil
}

// randomFeasible filters candidates to those with free table capacity
// on every hop, then picks uniformly among what's left (spec.md §4.3
// "random... filter to feasible paths, uniform random choice").
func (c *Controller) randomFeasible(candidates [][]string) []string {
	var feasible [][]string
	for _, cand := range candidates {
		if c.IsFeasible(cand) {
			feasible = append(feasible, cand)
		}
	}
	if len(feasible) == 0 {
		return nil
	}
	return feasible[c.rng.IntN(len(feasible))]
}

// bestByPenalty scores every candidate with tablePenalty and returns
// the minimizer, preferring the first candidate on a full tie
// (spec.md §4.3 "fe" scoring).
func bestByPenalty(topo *topology.Topology, candidates [][]string) []string {
	best := candidates[0]
	bestScore := tablePenalty(topo, best)
	for _, cand := range candidates[1:] {
		score := tablePenalty(topo, cand)
		if score < bestScore {
			best, bestScore = cand, score
		}
	}
	return best
}

// tablePenalty computes Σ C_N/(C_N-usage_N) over every switch on the
// path (endpoints included), a convex cost that blows up as any
// switch's flow table nears capacity, or maxFloat (the largest finite
// float64) if any switch is already full (spec.md §4.3).
func tablePenalty(topo *topology.Topology, path []string) float64 {
	total := 0.0
	for _, name := range path {
		n := topo.MustNode(name)
		capc := float64(n.TableSize)
		usage := float64(n.TableUsage())
		if usage >= capc {
			return maxFloat
		}
		total += capc / (capc - usage)
	}
	return total
}

const maxFloat = 1.7976931348623157e+308

// IsFeasible reports whether every switch on path has strictly free
// flow-table capacity (spec.md §4.3 "admission": usage < capacity).
func (c *Controller) IsFeasible(path []string) bool {
	if len(path) == 0 {
		return false
	}
	for _, name := range path {
		n, ok := c.topo.Node(name)
		if !ok || !n.HasCapacity() {
			return false
		}
	}
	return true
}
