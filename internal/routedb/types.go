// Package routedb precomputes, for every ordered pair of distinct
// switching nodes, the path set used by the controller's path
// selector (spec.md §4.2): a single shortest path, all equal-cost
// shortest paths (additionally indexed as an ECMP DAG), or Yen's k
// shortest paths.
package routedb

import (
	"errors"
	"fmt"

	"github.com/kychen/flowsim/internal/topology"
)

// Mode selects the path-set construction algorithm (spec.md §6
// pathdb_mode).
type Mode int

const (
	// OneShortest stores exactly one BFS shortest path per pair.
	OneShortest Mode = iota
	// AllShortest stores every shortest (minimum hop-count) path,
	// plus a derived ECMP DAG for uniform random walks.
	AllShortest
	// KPathYen stores up to K shortest paths via Yen's algorithm.
	KPathYen
)

// ErrUnknownPair indicates a lookup for a (src,dst) pair never built
// (disconnected, or src==dst) — a programmer error per spec.md §4.2.
var ErrUnknownPair = errors.New("routedb: unknown or disconnected src/dst pair")

type pairKey struct{ src, dst string }

// RouteDB is the precomputed path database for one topology.
type RouteDB struct {
	mode  Mode
	k     int
	topo  *topology.Topology
	paths map[pairKey][][]string

	// ecmp[pairKey{src,dst}][node] = legal next hops toward dst along some
	// shortest path from src (spec.md §4.2 "ECMP DAG"). Populated only
	// when mode == AllShortest.
	ecmp map[pairKey]map[string][]string
}

// Build constructs a RouteDB for every ordered distinct node pair in
// topo, per mode. k is the Yen target path count (ignored otherwise);
// k<=1 for KPathYen degenerates to OneShortest per node pair
// (Testable Property 8).
func Build(topo *topology.Topology, mode Mode, k int) (*RouteDB, error) {
	db := &RouteDB{mode: mode, k: k, topo: topo, paths: make(map[pairKey][][]string)}

	nodes := topo.Nodes()
	for _, src := range nodes {
		for _, dst := range nodes {
			if src == dst {
				continue
			}
			var paths [][]string
			var err error
			switch mode {
			case OneShortest:
				paths, err = oneShortest(topo, src, dst)
			case AllShortest:
				paths, err = allShortest(topo, src, dst)
			case KPathYen:
				paths, err = yenKShortest(topo, src, dst, k)
			default:
				paths, err = allShortest(topo, src, dst)
			}
			if err != nil {
				return nil, fmt.Errorf("routedb: building path set for (%s,%s): %w", src, dst, err)
			}
			db.paths[pairKey{src, dst}] = paths
		}
	}

	if mode == AllShortest {
		db.buildECMP()
	}

	return db, nil
}

// Paths returns the precomputed path set for (src,dst).
func (db *RouteDB) Paths(src, dst string) ([][]string, error) {
	p, ok := db.paths[pairKey{src, dst}]
	if !ok {
		return nil, ErrUnknownPair
	}
	return p, nil
}

// Mode reports the construction mode this RouteDB was built with.
func (db *RouteDB) Mode() Mode { return db.mode }
