package flowgen

import (
	"math/rand/v2"
	"net/netip"
	"sort"

	"github.com/kychen/flowsim/internal/engine"
	"github.com/kychen/flowsim/internal/topology"
)

// maxRejectionAttempts bounds the rejection-sampling loop used to avoid
// reissuing a (src,dst) pair already in the system (spec.md §3 "at most
// one flow per pair", §4.7). The original's Python loops unboundedly;
// we cap it since a saturated network can leave no pair free.
const maxRejectionAttempts = 64

// Generator implements engine.ArrivalSource over a fixed topology.
type Generator struct {
	topo *topology.Topology
	cfg  Config
	rng  *rand.Rand

	edgeSwitches []string
	hostIPs      map[string][]netip.Addr
}

// New builds a Generator. rng must be an explicitly threaded
// *rand.Rand (never the global generator) so a fixed seed reproduces
// byte-identical runs (spec.md §9).
func New(topo *topology.Topology, cfg Config, rng *rand.Rand) *Generator {
	g := &Generator{topo: topo, cfg: cfg, rng: rng, hostIPs: make(map[string][]netip.Addr)}
	for ip, sw := range topo.Hosts {
		g.hostIPs[sw] = append(g.hostIPs[sw], ip)
	}
	for _, ips := range g.hostIPs {
		sort.Slice(ips, func(i, j int) bool { return ips[i].Less(ips[j]) })
	}
	for _, name := range topo.Nodes() {
		if topo.EdgeSwitch(name) {
			g.edgeSwitches = append(g.edgeSwitches, name)
		}
	}
	return g
}

// InitialArrivals implements engine.ArrivalSource: seed the queue
// before the dispatch loop starts (spec.md §4.7 gen_init_flows). In
// saturate mode every host gets one flow, spread over [0, InitSpread)
// so hosts don't all fire at t=0; otherwise a single flow is seeded at
// t=0 and Next takes over from there.
func (g *Generator) InitialArrivals() []engine.TimedArrival {
	if g.cfg.Arrival != Saturate {
		return []engine.TimedArrival{{Time: 0, Arrival: g.pickArrival(nil)}}
	}

	hosts := g.sortedHostIPs()
	arrivals := make([]engine.TimedArrival, 0, len(hosts))
	for _, h := range hosts {
		t := g.rng.Float64() * g.cfg.InitSpread
		arrivals = append(arrivals, engine.TimedArrival{
			Time:    t,
			Arrival: g.arrivalFromSource(h.node, h.ip, nil),
		})
	}
	return arrivals
}

// Next implements engine.ArrivalSource for non-saturate modes:
// rejection-sample a fresh (src,dst) pair against tracked, then draw
// the gap until the one after it.
func (g *Generator) Next(now float64, tracked map[topology.FlowKey]struct{}) (engine.Arrival, float64) {
	return g.pickArrival(tracked), now + g.sampleInterarrival()
}

// NextFromSource implements engine.ArrivalSource for saturate mode:
// synthesize the flow that replaces one just ended at srcIP, keeping
// the same source host (spec.md §4.4 handle_EvFlowEnd).
func (g *Generator) NextFromSource(now float64, srcNode string, srcIP netip.Addr, tracked map[topology.FlowKey]struct{}) engine.Arrival {
	return g.arrivalFromSource(srcNode, srcIP, tracked)
}

// Saturate reports whether arrivals are paced by FlowEnd rather than by
// self-rescheduled FlowArrival events.
func (g *Generator) Saturate() bool { return g.cfg.Arrival == Saturate }

// pickArrival rejection-samples a whole (src,dst) pair — both endpoints
// freshly drawn — against tracked (spec.md §4.7, §3).
func (g *Generator) pickArrival(tracked map[topology.FlowKey]struct{}) engine.Arrival {
	var a engine.Arrival
	for attempt := 0; attempt < maxRejectionAttempts; attempt++ {
		srcNode, dstNode := g.pickPair()
		a = g.buildArrival(srcNode, dstNode, g.pickHostIP(srcNode), g.pickHostIP(dstNode))
		if !g.isTracked(tracked, a) {
			return a
		}
	}
	return a
}

// arrivalFromSource rejection-samples a destination for a fixed source
// host against tracked, used by both saturate-mode seeding and
// FlowEnd-driven replacement (spec.md §4.7 gen_new_flow_with_src).
func (g *Generator) arrivalFromSource(srcNode string, srcIP netip.Addr, tracked map[topology.FlowKey]struct{}) engine.Arrival {
	dstNode := g.pickDstNode(srcNode)
	var a engine.Arrival
	for attempt := 0; attempt < maxRejectionAttempts; attempt++ {
		a = g.buildArrival(srcNode, dstNode, srcIP, g.pickHostIP(dstNode))
		if !g.isTracked(tracked, a) {
			return a
		}
	}
	return a
}

func (g *Generator) isTracked(tracked map[topology.FlowKey]struct{}, a engine.Arrival) bool {
	if tracked == nil {
		return false
	}
	_, ok := tracked[topology.FlowKey{Src: a.SrcIP, Dst: a.DstIP}]
	return ok
}

func (g *Generator) buildArrival(srcNode, dstNode string, srcIP, dstIP netip.Addr) engine.Arrival {
	return engine.Arrival{
		SrcIP:   srcIP,
		DstIP:   dstIP,
		SrcNode: srcNode,
		DstNode: dstNode,
		Size:    g.sampleSize(),
		Rate:    g.cfg.RateCap,
	}
}

func (g *Generator) pickHostIP(sw string) netip.Addr {
	ips := g.hostIPs[sw]
	return ips[g.rng.IntN(len(ips))]
}

// pickDstNode picks an edge switch distinct from srcNode uniformly at
// random.
func (g *Generator) pickDstNode(srcNode string) string {
	n := len(g.edgeSwitches)
	if n < 2 {
		return g.edgeSwitches[0]
	}
	for {
		cand := g.edgeSwitches[g.rng.IntN(n)]
		if cand != srcNode {
			return cand
		}
	}
}

type hostEntry struct {
	node string
	ip   netip.Addr
}

// sortedHostIPs lists every host in deterministic order (switch name,
// then IP) so saturate-mode seeding doesn't depend on Go's randomized
// map iteration.
func (g *Generator) sortedHostIPs() []hostEntry {
	var hosts []hostEntry
	for _, sw := range g.edgeSwitches {
		for _, ip := range g.hostIPs[sw] {
			hosts = append(hosts, hostEntry{node: sw, ip: ip})
		}
	}
	return hosts
}

// pickPair chooses a distinct (src,dst) edge-switch pair per
// cfg.SrcDst (spec.md §4.7).
func (g *Generator) pickPair() (string, string) {
	n := len(g.edgeSwitches)
	if n < 2 {
		return g.edgeSwitches[0], g.edgeSwitches[0]
	}

	switch g.cfg.SrcDst {
	case Gravity:
		return g.weightedPair(func(a, b *topology.Node) float64 { return float64(a.NHosts) * float64(b.NHosts) })
	case AntiGravity:
		return g.weightedPair(func(a, b *topology.Node) float64 {
			w := float64(a.NHosts) * float64(b.NHosts)
			if w <= 0 {
				return 0
			}
			return 1 / w
		})
	default: // Uniform
		i := g.rng.IntN(n)
		j := g.rng.IntN(n - 1)
		if j >= i {
			j++
		}
		return g.edgeSwitches[i], g.edgeSwitches[j]
	}
}

// weightedPair draws an ordered pair of distinct edge switches with
// probability proportional to weight(a,b), via cumulative-sum sampling
// over every ordered pair.
func (g *Generator) weightedPair(weight func(a, b *topology.Node) float64) (string, string) {
	type pair struct{ a, b string }
	var pairs []pair
	var cum []float64
	total := 0.0
	for _, a := range g.edgeSwitches {
		for _, b := range g.edgeSwitches {
			if a == b {
				continue
			}
			na, _ := g.topo.Node(a)
			nb, _ := g.topo.Node(b)
			w := weight(na, nb)
			if w <= 0 {
				continue
			}
			total += w
			pairs = append(pairs, pair{a, b})
			cum = append(cum, total)
		}
	}
	if total == 0 {
		i := g.rng.IntN(len(g.edgeSwitches))
		j := g.rng.IntN(len(g.edgeSwitches) - 1)
		if j >= i {
			j++
		}
		return g.edgeSwitches[i], g.edgeSwitches[j]
	}
	r := g.rng.Float64() * total
	idx := sort.SearchFloat64s(cum, r)
	if idx >= len(pairs) {
		idx = len(pairs) - 1
	}
	return pairs[idx].a, pairs[idx].b
}
