package stats

import (
	"encoding/csv"
	"fmt"
	"math"
	"path/filepath"
)

// writeSummary averages each link's and each node's utilization
// series after discarding its first floor(ignoreHead*N) samples,
// exactly as SimCoreLogging.py's dump_link_util computed
// pos = int(len(col) * IGNORE_HEAD) before averaging (spec.md §9).
func (s *Sink) writeSummary() error {
	linkSeries := map[string][]float64{}
	linkLabel := map[string][2]string{}
	for _, r := range s.linkSamples {
		key := r.a + "|" + r.b
		linkSeries[key] = append(linkSeries[key], r.utilization)
		linkLabel[key] = [2]string{r.a, r.b}
	}

	tableSeries := map[string][]float64{}
	for _, r := range s.tableSamples {
		tableSeries[r.node] = append(tableSeries[r.node], r.utilization)
	}

	return writeCSV(filepath.Join(s.dir, "summary.csv"),
		[]string{"metric_type", "key", "avg_utilization", "sample_count"},
		func(w *csv.Writer) error {
			for _, key := range sortedKeys(linkSeries) {
				lbl := linkLabel[key]
				avg, n := windowedAverage(linkSeries[key], s.ignoreHead)
				if err := w.Write([]string{"link_util", lbl[0] + "-" + lbl[1], formatFloat(avg), fmt.Sprintf("%d", n)}); err != nil {
					return err
				}
			}
			for _, key := range sortedKeys(tableSeries) {
				avg, n := windowedAverage(tableSeries[key], s.ignoreHead)
				if err := w.Write([]string{"table_util", key, formatFloat(avg), fmt.Sprintf("%d", n)}); err != nil {
					return err
				}
			}
			return nil
		})
}

// windowedAverage drops the leading floor(ignoreHead*len(series))
// samples, then averages what remains. An empty series averages to
// zero; otherwise at least the last sample is always kept.
func windowedAverage(series []float64, ignoreHead float64) (float64, int) {
	if len(series) == 0 {
		return 0, 0
	}
	pos := int(math.Floor(float64(len(series)) * ignoreHead))
	if pos >= len(series) {
		pos = len(series) - 1
	}
	tail := series[pos:]
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	return sum / float64(len(tail)), len(tail)
}
