// Package topoload parses the nodes.csv/links.csv topology inputs
// into internal/topology specs, applying any global overrides the run
// configuration sets (spec.md §6 "topology ingestion"). encoding/csv
// is used for the same reason internal/stats uses it for output: no
// third-party CSV library appears in the reference corpus (DESIGN.md).
package topoload

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kychen/flowsim/internal/topology"
)

// Overrides applies uniformly to every parsed node/link, letting a run
// config sweep table size, host count, or link capacity without
// editing the CSV fixtures (spec.md §6). A zero field means "no
// override"; CapUnit scales every parsed link-capacity value
// regardless of whether Cap itself is overridden.
type Overrides struct {
	TableSize int
	NHosts    int
	Cap       float64
	CapUnit   string // "", "bps", "kbps", "mbps", "gbps" (default bps)
}

var capUnitScale = map[string]float64{
	"":     1,
	"bps":  1,
	"kbps": 1e3,
	"mbps": 1e6,
	"gbps": 1e9,
}

// Load parses nodes.csv (columns: name,table_size,n_hosts) and
// links.csv (columns: node1,node2,cap) and builds a validated Topology.
func Load(nodesPath, linksPath string, ov Overrides) (*topology.Topology, error) {
	nodeRows, err := readCSV(nodesPath)
	if err != nil {
		return nil, fmt.Errorf("topoload: %w", err)
	}
	linkRows, err := readCSV(linksPath)
	if err != nil {
		return nil, fmt.Errorf("topoload: %w", err)
	}

	scale, ok := capUnitScale[strings.ToLower(ov.CapUnit)]
	if !ok {
		return nil, fmt.Errorf("topoload: unknown cap_unit %q", ov.CapUnit)
	}

	nodeSpecs := make([]topology.NodeSpec, 0, len(nodeRows))
	for i, row := range nodeRows {
		if len(row) < 3 {
			return nil, fmt.Errorf("topoload: nodes.csv row %d: want 3 columns, got %d", i+1, len(row))
		}
		tableSize, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("topoload: nodes.csv row %d: table_size: %w", i+1, err)
		}
		nHosts, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("topoload: nodes.csv row %d: n_hosts: %w", i+1, err)
		}
		if ov.TableSize > 0 {
			tableSize = ov.TableSize
		}
		if ov.NHosts > 0 {
			nHosts = ov.NHosts
		}
		nodeSpecs = append(nodeSpecs, topology.NodeSpec{
			Name: strings.TrimSpace(row[0]), TableSize: tableSize, NHosts: nHosts,
		})
	}

	linkSpecs := make([]topology.LinkSpec, 0, len(linkRows))
	for i, row := range linkRows {
		if len(row) < 3 {
			return nil, fmt.Errorf("topoload: links.csv row %d: want 3 columns, got %d", i+1, len(row))
		}
		cap, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("topoload: links.csv row %d: cap: %w", i+1, err)
		}
		if ov.Cap > 0 {
			cap = ov.Cap
		}
		cap *= scale
		linkSpecs = append(linkSpecs, topology.LinkSpec{
			Node1: strings.TrimSpace(row[0]), Node2: strings.TrimSpace(row[1]), Cap: cap,
		})
	}

	return topology.New(nodeSpecs, linkSpecs)
}

// readCSV reads path and strips a header row if its last cell is
// non-numeric (a lenient way to accept both headered and bare fixtures:
// the last column, n_hosts or cap, is numeric in every data row).
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	if len(rows[0]) > 1 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(rows[0][len(rows[0])-1]), 64); err != nil {
			rows = rows[1:] // header row
		}
	}
	return rows, nil
}
