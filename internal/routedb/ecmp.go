package routedb

// buildECMP derives, from the already-computed AllShortest path sets,
// a per-pair DAG of legal next hops: ecmp[pairKey][node] lists every
// neighbor that starts a shortest continuation from node to dst. This
// lets WalkECMP walk the DAG with a single per-hop random choice
// instead of picking a whole path up front, matching the original
// controller's per-switch ECMP semantics (grounded on
// SimCtrlPathDB.py's build_ecmp_dag).
func (db *RouteDB) buildECMP() {
	db.ecmp = make(map[pairKey]map[string][]string, len(db.paths))
	for key, paths := range db.paths {
		nextHops := make(map[string][]string)
		for _, path := range paths {
			for i := 0; i+1 < len(path); i++ {
				cur, nb := path[i], path[i+1]
				if !contains(nextHops[cur], nb) {
					nextHops[cur] = append(nextHops[cur], nb)
				}
			}
		}
		db.ecmp[key] = nextHops
	}
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// NextHops returns the legal ECMP next hops from node toward dst along
// some shortest path from src, or nil if node lies on no shortest
// src->dst path (or the RouteDB was not built with AllShortest).
func (db *RouteDB) NextHops(src, dst, node string) []string {
	if db.ecmp == nil {
		return nil
	}
	m, ok := db.ecmp[pairKey{src, dst}]
	if !ok {
		return nil
	}
	return m[node]
}

// RandFunc draws a pseudo-random non-negative int in [0, n) — callers
// pass an explicitly threaded *rand.Rand method so path selection stays
// reproducible under a fixed seed (spec.md §9 determinism).
type RandFunc func(n int) int

// WalkECMP draws one path from src to dst by taking a uniformly random
// legal next hop at every node, per spec.md §4.2's ECMP selection rule.
// The RouteDB must have been built with AllShortest.
func (db *RouteDB) WalkECMP(src, dst string, randIntn RandFunc) []string {
	path := []string{src}
	cur := src
	for cur != dst {
		hops := db.NextHops(src, dst, cur)
		if len(hops) == 0 {
			return nil
		}
		cur = hops[randIntn(len(hops))]
		path = append(path, cur)
	}
	return path
}
