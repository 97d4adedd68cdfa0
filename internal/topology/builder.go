package topology

import (
	"fmt"
	"math/bits"
	"net/netip"
	"sort"
)

// NodeSpec and LinkSpec are the raw, pre-validation records a loader
// (e.g. internal/topoload) hands to New. They carry exactly the fields
// spec.md §6 says topology inputs provide.
type NodeSpec struct {
	Name      string
	TableSize int
	NHosts    int
}

type LinkSpec struct {
	Node1, Node2 string
	Cap          float64
}

// New validates and constructs a Topology from node/link specs. It
// fails fast on malformed input (spec.md §7): duplicate node names,
// self-loops, negative capacities, links to unknown nodes, or a
// disconnected graph.
//
// Host IP blocks are assigned in spec order: each node gets a
// contiguous block sized to the next power of two above its host
// count (spec.md §2 host allocator), base IPs advancing by the
// previous block's size, starting at 10.0.0.1 (grounded on the
// original's SimCore.create_hosts).
func New(nodeSpecs []NodeSpec, linkSpecs []LinkSpec) (*Topology, error) {
	t := &Topology{
		nodes: make(map[string]*Node, len(nodeSpecs)),
		links: make(map[[2]string]*Link, len(linkSpecs)),
		adj:   make(map[string][]string, len(nodeSpecs)),
		Hosts: make(map[netip.Addr]string),
	}

	for _, ns := range nodeSpecs {
		if _, dup := t.nodes[ns.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateNode, ns.Name)
		}
		t.nodes[ns.Name] = &Node{
			Name:      ns.Name,
			TableSize: ns.TableSize,
			NHosts:    ns.NHosts,
			Table:     make(map[FlowKey]float64),
		}
	}

	for _, ls := range linkSpecs {
		if ls.Node1 == ls.Node2 {
			return nil, fmt.Errorf("%w: %q", ErrSelfLoop, ls.Node1)
		}
		if ls.Cap < 0 {
			return nil, fmt.Errorf("%w: %g on (%s,%s)", ErrNegativeCapacity, ls.Cap, ls.Node1, ls.Node2)
		}
		if _, ok := t.nodes[ls.Node1]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, ls.Node1)
		}
		if _, ok := t.nodes[ls.Node2]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, ls.Node2)
		}
		key := linkKey(ls.Node1, ls.Node2)
		if _, dup := t.links[key]; dup {
			continue // parallel spec rows collapse onto the same undirected link
		}
		t.links[key] = &Link{A: ls.Node1, B: ls.Node2, Cap: ls.Cap, Flows: make(map[FlowKey]struct{})}
		t.adj[ls.Node1] = append(t.adj[ls.Node1], ls.Node2)
		t.adj[ls.Node2] = append(t.adj[ls.Node2], ls.Node1)
	}

	for _, neighbors := range t.adj {
		sort.Strings(neighbors)
	}

	if err := t.validateConnected(); err != nil {
		return nil, err
	}

	t.assignHosts()

	return t, nil
}

// validateConnected checks the graph is connected via BFS from an
// arbitrary node, guarding against the "disconnected pair requested"
// programmer error described in spec.md §4.2/§7.
func (t *Topology) validateConnected() error {
	if len(t.nodes) == 0 {
		return nil
	}
	var start string
	for name := range t.nodes {
		start = name
		break
	}
	seen := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range t.adj[cur] {
			if !seen[nb] {
				seen[nb] = true
				queue = append(queue, nb)
			}
		}
	}
	if len(seen) != len(t.nodes) {
		return ErrDisconnected
	}
	return nil
}

// assignHosts walks nodes in deterministic (name-sorted) order,
// assigning each a contiguous IPv4 block sized to the next power of
// two above its host count.
func (t *Topology) assignHosts() {
	names := make([]string, 0, len(t.nodes))
	for name := range t.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	base := netip.MustParseAddr("10.0.0.1")
	for _, name := range names {
		n := t.nodes[name]
		blockSize := nextPow2(n.NHosts)
		n.BaseIP = base
		n.EndIP = addOffset(base, n.NHosts-1)
		for i := 0; i < n.NHosts; i++ {
			t.Hosts[addOffset(base, i)] = name
		}
		base = addOffset(base, blockSize)
	}
}

// nextPow2 returns the smallest power of two >= n (n=0 maps to 1).
func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// addOffset adds a non-negative integer offset to an IPv4 address.
func addOffset(addr netip.Addr, off int) netip.Addr {
	a4 := addr.As4()
	v := uint32(a4[0])<<24 | uint32(a4[1])<<16 | uint32(a4[2])<<8 | uint32(a4[3])
	v += uint32(off)
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// Node returns the node by name, or (nil, false) if absent.
func (t *Topology) Node(name string) (*Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// MustNode returns the node by name, panicking if absent — for use
// only where the caller has already validated the name exists (e.g.
// walking a precomputed path).
func (t *Topology) MustNode(name string) *Node {
	n, ok := t.nodes[name]
	if !ok {
		panic(fmt.Sprintf("topology: node %q not found", name))
	}
	return n
}

// Link returns the undirected link between a and b, alias-aware.
func (t *Topology) Link(a, b string) (*Link, bool) {
	l, ok := t.links[linkKey(a, b)]
	return l, ok
}

// MustLink returns the link between a and b, panicking if absent.
func (t *Topology) MustLink(a, b string) *Link {
	l, ok := t.links[linkKey(a, b)]
	if !ok {
		panic(fmt.Sprintf("topology: link (%s,%s) not found", a, b))
	}
	return l
}

// Neighbors returns the sorted neighbor list of a node.
func (t *Topology) Neighbors(name string) []string { return t.adj[name] }

// Nodes returns node names in sorted order.
func (t *Topology) Nodes() []string {
	names := make([]string, 0, len(t.nodes))
	for name := range t.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeObjs returns the underlying node map. Callers must not mutate
// the map itself, only the per-node flow tables during event handling.
func (t *Topology) NodeObjs() map[string]*Node { return t.nodes }

// Links returns all links in a deterministic (endpoint-sorted) order.
func (t *Topology) Links() []*Link {
	keys := make([][2]string, 0, len(t.links))
	for k := range t.links {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	out := make([]*Link, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.links[k])
	}
	return out
}

// LinksOnPath returns the ordered list of links traversed by path,
// alias-resolved (spec.md §9 undirected link aliasing).
func (t *Topology) LinksOnPath(path []string) []*Link {
	if len(path) < 2 {
		return nil
	}
	out := make([]*Link, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		out = append(out, t.MustLink(path[i], path[i+1]))
	}
	return out
}

// EdgeSwitch reports whether nd has at least one attached host
// (spec.md GLOSSARY "Edge switch").
func (t *Topology) EdgeSwitch(nd string) bool {
	n, ok := t.nodes[nd]
	return ok && n.NHosts > 0
}
