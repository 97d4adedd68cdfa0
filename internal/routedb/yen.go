package routedb

import (
	"sort"
	"strings"

	"github.com/kychen/flowsim/internal/topology"
)

// yenKShortest returns up to k loopless shortest paths from src to dst,
// via Yen's algorithm: each iteration spurs off every prefix of the
// previously accepted path, suppressing edges shared by that prefix
// (so the same path is never regenerated) and suppressing the prefix's
// interior nodes (so spur paths stay loopless), adapted from
// SimCtrlPathDB.py's k_shortest_paths onto the teacher's BFS walk
// pattern (bfs/bfs.go) with explicit edge/node exclusion sets.
func yenKShortest(topo *topology.Topology, src, dst string, k int) ([][]string, error) {
	if k < 1 {
		k = 1
	}

	adj := directedAdjacency(topo)

	first, ok := bfsExcluding(adj, src, dst, nil, nil)
	if !ok {
		return nil, ErrUnknownPair
	}
	accepted := [][]string{first}

	type candidate struct{ path []string }
	var candidates []candidate
	seen := map[string]bool{pathString(first): true}

	for len(accepted) < k {
		prev := accepted[len(accepted)-1]
		for i := 0; i < len(prev)-1; i++ {
			spurNode := prev[i]
			rootPath := prev[:i+1]

			removedEdges := map[[2]string]bool{}
			for _, p := range accepted {
				if len(p) > i && equalPrefix(p, rootPath) {
					removedEdges[[2]string{p[i], p[i+1]}] = true
				}
			}
			removedNodes := map[string]bool{}
			for _, n := range rootPath[:len(rootPath)-1] {
				removedNodes[n] = true
			}

			spurPath, ok := bfsExcluding(adj, spurNode, dst, removedEdges, removedNodes)
			if !ok {
				continue
			}
			total := append(append([]string{}, rootPath[:len(rootPath)-1]...), spurPath...)
			key := pathString(total)
			if seen[key] {
				continue
			}
			seen[key] = true
			candidates = append(candidates, candidate{total})
		}

		if len(candidates) == 0 {
			break
		}
		sort.Slice(candidates, func(a, b int) bool {
			if len(candidates[a].path) != len(candidates[b].path) {
				return len(candidates[a].path) < len(candidates[b].path)
			}
			return pathString(candidates[a].path) < pathString(candidates[b].path)
		})
		best := candidates[0].path
		candidates = candidates[1:]
		accepted = append(accepted, best)
	}

	return accepted, nil
}

// directedAdjacency builds a two-way directed adjacency from the
// undirected topology, mirroring networkx's nx.DiGraph(undirected_G)
// conversion the original path-DB builder relies on.
func directedAdjacency(topo *topology.Topology) map[string][]string {
	adj := make(map[string][]string)
	for _, n := range topo.Nodes() {
		adj[n] = append(adj[n], topo.Neighbors(n)...)
	}
	return adj
}

// bfsExcluding finds a shortest src->dst path in adj, ignoring any edge
// in removedEdges and never stepping onto a node in removedNodes
// (src/dst themselves are never excluded, matching Yen's spur rule).
func bfsExcluding(adj map[string][]string, src, dst string, removedEdges map[[2]string]bool, removedNodes map[string]bool) ([]string, bool) {
	parent := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == dst {
			return reconstruct(parent, src, dst), true
		}
		for _, nb := range adj[cur] {
			if removedNodes[nb] && nb != dst {
				continue
			}
			if removedEdges[[2]string{cur, nb}] {
				continue
			}
			if _, seen := parent[nb]; !seen {
				parent[nb] = cur
				queue = append(queue, nb)
			}
		}
	}
	return nil, false
}

func equalPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}

func pathString(path []string) string { return strings.Join(path, ">") }
