package routedb

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteDebug dumps every precomputed path set in a stable, human-
// readable form — useful for diffing route databases across topology
// or mode changes (spec.md SUPPLEMENTED FEATURES).
func (db *RouteDB) WriteDebug(w io.Writer) error {
	keys := make([]pairKey, 0, len(db.paths))
	for k := range db.paths {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].src != keys[j].src {
			return keys[i].src < keys[j].src
		}
		return keys[i].dst < keys[j].dst
	})

	for _, k := range keys {
		paths := db.paths[k]
		rendered := make([]string, len(paths))
		for i, p := range paths {
			rendered[i] = strings.Join(p, ">")
		}
		if _, err := fmt.Fprintf(w, "%s -> %s: %s\n", k.src, k.dst, strings.Join(rendered, " | ")); err != nil {
			return err
		}
	}
	return nil
}
