package stats

import (
	"encoding/csv"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kychen/flowsim/internal/flow"
	"github.com/kychen/flowsim/internal/topology"
)

func mkTopo(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.New(
		[]topology.NodeSpec{{Name: "s1", TableSize: 4, NHosts: 1}, {Name: "s2", TableSize: 4, NHosts: 1}},
		[]topology.LinkSpec{{Node1: "s1", Node2: "s2", Cap: 100}},
	)
	require.NoError(t, err)
	return topo
}

func TestSinkWritesAllFilesWithHeaders(t *testing.T) {
	dir := t.TempDir()
	topo := mkTopo(t)

	sink, err := NewSink(dir, 0.5)
	require.NoError(t, err)

	topo.MustLink("s1", "s2").UnassignedBW = 20
	topo.MustLink("s1", "s2").NActiveFlows = 3
	sink.LogLinkUtil(0, topo)
	sink.LogLinkUtil(1, topo)
	sink.LogTableUtil(0, topo)

	ip := netip.MustParseAddr("10.0.0.1")
	f := flow.New(topology.FlowKey{Src: ip, Dst: ip}, "s1", "s2", 100, 10, 0)
	f.Finish(5)
	sink.RecordFlow(f)

	require.NoError(t, sink.Close())

	for _, name := range []string{"flow_stats.csv", "link_util.csv", "table_util.csv", "summary.csv"} {
		assertHasHeader(t, filepath.Join(dir, name))
	}
}

func assertHasHeader(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(records), 1, "%s should have a header row", path)
}

func TestWindowedAverageDropsLeadingFraction(t *testing.T) {
	avg, n := windowedAverage([]float64{0, 0, 0, 1, 1, 1}, 0.5)
	assert.InDelta(t, 1.0, avg, 1e-9)
	assert.Equal(t, 3, n)
}

func TestWindowedAverageEmptySeries(t *testing.T) {
	avg, n := windowedAverage(nil, 0.5)
	assert.Equal(t, 0.0, avg)
	assert.Equal(t, 0, n)
}
