// Package stats collects the time series and per-flow records a
// simulation run produces and writes them out as CSV (spec.md §6),
// grounded on SimCoreLogging.py's dump_link_util/dump_table_util
// column layouts and its floor(ignore_head*N) windowed-average
// summary. encoding/csv is the one ambient concern left on the
// standard library: no third-party CSV library appears anywhere in
// the reference corpus, so there is nothing idiomatic to reach for
// instead (see DESIGN.md).
package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

type linkSample struct {
	time        float64
	a, b        string
	capacity    float64
	used        float64
	utilization float64
	activeFlows int
}

type tableSample struct {
	time        float64
	node        string
	size        int
	usage       int
	utilization float64
}

// Sink implements engine.StatsSink, streaming per-flow records to
// flow_stats.csv as they complete and buffering link/table utilization
// samples in memory for a final summary pass on Close.
type Sink struct {
	dir        string
	ignoreHead float64

	flowFile *os.File
	flowCSV  *csv.Writer

	linkSamples  []linkSample
	tableSamples []tableSample
}

// NewSink creates dir (if absent) and opens the streaming flow_stats.csv
// writer. ignoreHead is the fraction of each time series' leading
// samples summary.csv discards as warm-up (spec.md §9).
func NewSink(dir string, ignoreHead float64) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stats: creating output dir: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, "flow_stats.csv"))
	if err != nil {
		return nil, fmt.Errorf("stats: creating flow_stats.csv: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"src_ip", "dst_ip", "src_node", "dst_node", "flow_size", "flow_rate",
		"arrive_time", "install_time", "end_time", "remove_time", "duration",
		"avg_rate", "resend", "reroute",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("stats: writing flow_stats.csv header: %w", err)
	}
	return &Sink{dir: dir, ignoreHead: ignoreHead, flowFile: f, flowCSV: w}, nil
}

// LogLinkUtil snapshots every link's current utilization (spec.md §6
// link_util.csv).
func (s *Sink) LogLinkUtil(now float64, topo *topology.Topology) {
	for _, l := range topo.Links() {
		used := l.Cap - l.UnassignedBW
		if used < 0 {
			used = 0
		}
		util := 0.0
		if l.Cap > 0 {
			util = used / l.Cap
		}
		s.linkSamples = append(s.linkSamples, linkSample{
			time: now, a: l.A, b: l.B, capacity: l.Cap, used: used,
			utilization: util, activeFlows: l.NActiveFlows,
		})
	}
}

// LogTableUtil snapshots every node's flow-table utilization (spec.md
// §6 table_util.csv).
func (s *Sink) LogTableUtil(now float64, topo *topology.Topology) {
	for _, name := range topo.Nodes() {
		n := topo.MustNode(name)
		util := 0.0
		if n.TableSize > 0 {
			util = float64(n.TableUsage()) / float64(n.TableSize)
		}
		s.tableSamples = append(s.tableSamples, tableSample{
			time: now, node: name, size: n.TableSize, usage: n.TableUsage(), utilization: util,
		})
	}
}

// RecordFlow streams one completed flow's record to flow_stats.csv.
func (s *Sink) RecordFlow(f *flow.Flow) {
	_ = s.flowCSV.Write([]string{
		f.Key.Src.String(), f.Key.Dst.String(), f.SrcNode, f.DstNode,
		formatFloat(f.FlowSize), formatFloat(f.FlowRate),
		formatFloat(f.ArriveTime), formatFloat(f.InstallTime), formatFloat(f.EndTime), formatFloat(f.RemoveTime),
		formatFloat(f.Duration), formatFloat(f.AvgRate),
		fmt.Sprintf("%d", f.Resend), fmt.Sprintf("%d", f.Reroute),
	})
}

// Close flushes flow_stats.csv and writes link_util.csv, table_util.csv
// and the ignore-head-averaged summary.csv.
func (s *Sink) Close() error {
	s.flowCSV.Flush()
	if err := s.flowCSV.Error(); err != nil {
		s.flowFile.Close()
		return fmt.Errorf("stats: flushing flow_stats.csv: %w", err)
	}
	if err := s.flowFile.Close(); err != nil {
		return fmt.Errorf("stats: closing flow_stats.csv: %w", err)
	}

	if err := s.writeLinkUtil(); err != nil {
		return err
	}
	if err := s.writeTableUtil(); err != nil {
		return err
	}
	return s.writeSummary()
}

func (s *Sink) writeLinkUtil() error {
	return writeCSV(filepath.Join(s.dir, "link_util.csv"),
		[]string{"time", "node_a", "node_b", "capacity", "bw_used", "utilization", "active_flows"},
		func(w *csv.Writer) error {
			for _, r := range s.linkSamples {
				if err := w.Write([]string{
					formatFloat(r.time), r.a, r.b, formatFloat(r.capacity),
					formatFloat(r.used), formatFloat(r.utilization), fmt.Sprintf("%d", r.activeFlows),
				}); err != nil {
					return err
				}
			}
			return nil
		})
}

func (s *Sink) writeTableUtil() error {
	return writeCSV(filepath.Join(s.dir, "table_util.csv"),
		[]string{"time", "node", "table_size", "usage", "utilization"},
		func(w *csv.Writer) error {
			for _, r := range s.tableSamples {
				if err := w.Write([]string{
					formatFloat(r.time), r.node, fmt.Sprintf("%d", r.size),
					fmt.Sprintf("%d", r.usage), formatFloat(r.utilization),
				}); err != nil {
					return err
				}
			}
			return nil
		})
}

func writeCSV(path string, header []string, body func(*csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("stats: creating %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("stats: writing %s header: %w", path, err)
	}
	if err := body(w); err != nil {
		return fmt.Errorf("stats: writing %s rows: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string { return fmt.Sprintf("%g", v) }

// sortedKeys is a small helper kept for summary.go's deterministic
// per-key iteration.
func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
