package routedb

import "github.com/kychen/flowsim/internal/topology"

// oneShortest returns a single BFS shortest path from src to dst,
// generalizing the teacher's bfs.BFS level walk to reconstruct the
// path itself rather than just distances/visit order.
func oneShortest(topo *topology.Topology, src, dst string) ([][]string, error) {
	parent := map[string]string{src: ""}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == dst {
			return [][]string{reconstruct(parent, src, dst)}, nil
		}
		for _, nb := range topo.Neighbors(cur) {
			if _, seen := parent[nb]; !seen {
				parent[nb] = cur
				queue = append(queue, nb)
			}
		}
	}
	return nil, ErrUnknownPair
}

// allShortest returns every minimum hop-count path from src to dst,
// found by a level-synchronized BFS that records, for each node, every
// predecessor reached at the minimal distance.
func allShortest(topo *topology.Topology, src, dst string) ([][]string, error) {
	dist := map[string]int{src: 0}
	preds := map[string][]string{}
	frontier := []string{src}

	for len(frontier) > 0 && dist[dst] == 0 && dst != src {
		var next []string
		nextDist := dist[frontier[0]] + 1
		seenThisLevel := map[string]bool{}
		for _, cur := range frontier {
			for _, nb := range topo.Neighbors(cur) {
				if d, ok := dist[nb]; ok && d < nextDist {
					continue // already reached at a strictly shorter distance
				}
				preds[nb] = append(preds[nb], cur)
				if _, ok := dist[nb]; !ok {
					dist[nb] = nextDist
				}
				if !seenThisLevel[nb] {
					seenThisLevel[nb] = true
					next = append(next, nb)
				}
			}
		}
		frontier = next
	}

	if _, ok := dist[dst]; !ok {
		return nil, ErrUnknownPair
	}

	var paths [][]string
	var walk func(node string, suffix []string)
	walk = func(node string, suffix []string) {
		path := append([]string{node}, suffix...)
		if node == src {
			out := make([]string, len(path))
			copy(out, path)
			paths = append(paths, out)
			return
		}
		for _, p := range preds[node] {
			walk(p, path)
		}
	}
	walk(dst, nil)
	return paths, nil
}

func reconstruct(parent map[string]string, src, dst string) []string {
	var rev []string
	for n := dst; ; {
		rev = append(rev, n)
		if n == src {
			break
		}
		n = parent[n]
	}
	out := make([]string, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}
