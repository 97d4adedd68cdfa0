// Package topology holds the immutable network model: switching nodes
// with a bounded flow table, capacitated undirected links between them,
// and the host population attached to edge switches.
//
// A Topology is built once at startup and never mutated structurally
// afterward; only the transient per-node/per-link bookkeeping fields
// (flow table contents, link bookkeeping used by the allocator) change
// while a simulation runs.
package topology

import (
	"errors"
	"fmt"
	"net/netip"
)

// Sentinel errors for topology construction and lookup.
var (
	// ErrDuplicateNode indicates two node records share the same name.
	ErrDuplicateNode = errors.New("topology: duplicate node name")

	// ErrSelfLoop indicates a link record connects a node to itself.
	ErrSelfLoop = errors.New("topology: self-loop link not allowed")

	// ErrNegativeCapacity indicates a link capacity below zero.
	ErrNegativeCapacity = errors.New("topology: negative link capacity")

	// ErrUnknownNode indicates a link references a node that was never declared.
	ErrUnknownNode = errors.New("topology: link references unknown node")

	// ErrNodeNotFound indicates a lookup by name found nothing.
	ErrNodeNotFound = errors.New("topology: node not found")

	// ErrLinkNotFound indicates a lookup by endpoint pair found nothing.
	ErrLinkNotFound = errors.New("topology: link not found")

	// ErrDisconnected indicates the topology is not fully connected.
	ErrDisconnected = errors.New("topology: graph is disconnected")
)

// FlowKey uniquely identifies a flow by its endpoint IPs, mirroring the
// original simulator's (src_ip, dst_ip) tuple key.
type FlowKey struct {
	Src netip.Addr
	Dst netip.Addr
}

// String renders the key as "src->dst" for logs and CSV columns.
func (k FlowKey) String() string {
	return fmt.Sprintf("%s->%s", k.Src, k.Dst)
}

// Node is a switching element: identity, flow-table capacity, host
// count, the IP block assigned to its hosts, and the live flow table.
//
// Invariant: len(Table) <= TableSize at all times outside a handler
// (spec.md §3).
type Node struct {
	Name      string
	TableSize int
	NHosts    int

	BaseIP netip.Addr
	EndIP  netip.Addr

	// Table maps an admitted (src,dst) pair to its byte counter, as
	// mirrored at the switch. The counter is reset by CollectCnt.
	Table map[FlowKey]float64
}

// TableUsage reports the number of live flow-table entries.
func (n *Node) TableUsage() int { return len(n.Table) }

// HasCapacity reports whether the node can admit one more entry
// (strict less-than, per spec.md §4.3's feasibility definition).
func (n *Node) HasCapacity() bool { return len(n.Table) < n.TableSize }

// InstallEntry adds (k) to the node's flow table with a zero counter.
func (n *Node) InstallEntry(k FlowKey) { n.Table[k] = 0 }

// RemoveEntry evicts (k) from the node's flow table. A no-op if absent.
func (n *Node) RemoveEntry(k FlowKey) { delete(n.Table, k) }

// Link is an undirected, capacitated edge between two nodes. Keys (a,b)
// and (b,a) alias to the same *Link (spec.md §3, §9).
//
// UnassignedBW/NActiveFlows/NUnassignedFlows/BWPerFlow are transient
// bookkeeping fields used exclusively during one allocator pass
// (spec.md §3); callers outside internal/allocator must not rely on
// their values persisting between runs.
type Link struct {
	A, B string
	Cap  float64

	// Flows is the set of flow keys currently registered on this link
	// (installed, regardless of Active/Finished status).
	Flows map[FlowKey]struct{}

	// Allocator scratch space, reset at the top of every allocator pass.
	UnassignedBW     float64
	NActiveFlows     int
	NUnassignedFlows int
	BWPerFlow        float64
}

// Other returns the endpoint opposite nd, or "" if nd is not an endpoint.
func (l *Link) Other(nd string) string {
	switch nd {
	case l.A:
		return l.B
	case l.B:
		return l.A
	default:
		return ""
	}
}

// AddFlow registers a flow key on the link.
func (l *Link) AddFlow(k FlowKey) { l.Flows[k] = struct{}{} }

// RemoveFlow unregisters a flow key from the link.
func (l *Link) RemoveFlow(k FlowKey) { delete(l.Flows, k) }

// linkKey normalizes an unordered node pair into a canonical map key so
// (a,b) and (b,a) alias to the same entry.
func linkKey(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// Topology is the immutable (post-construction) network graph: nodes,
// links, adjacency, and the host->edge-switch mapping.
type Topology struct {
	nodes map[string]*Node
	links map[[2]string]*Link
	adj   map[string][]string // node -> neighbor node names

	// Hosts maps a host IP to the name of its attached edge switch.
	Hosts map[netip.Addr]string
}
