package topoload

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixtures(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	nodes := filepath.Join(dir, "nodes.csv")
	links := filepath.Join(dir, "links.csv")
	require.NoError(t, os.WriteFile(nodes, []byte("name,table_size,n_hosts\ns1,8,2\ns2,8,2\n"), 0o644))
	require.NoError(t, os.WriteFile(links, []byte("node1,node2,cap\ns1,s2,10\n"), 0o644))
	return nodes, links
}

func TestLoadParsesFixtures(t *testing.T) {
	nodes, links := writeFixtures(t)
	topo, err := Load(nodes, links, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, topo.Nodes())
	assert.Equal(t, 10.0, topo.MustLink("s1", "s2").Cap)
}

func TestLoadAppliesOverrides(t *testing.T) {
	nodes, links := writeFixtures(t)
	topo, err := Load(nodes, links, Overrides{TableSize: 16, Cap: 5, CapUnit: "mbps"})
	require.NoError(t, err)
	assert.Equal(t, 16, topo.MustNode("s1").TableSize)
	assert.Equal(t, 5e6, topo.MustLink("s1", "s2").Cap)
}

func TestLoadRejectsUnknownCapUnit(t *testing.T) {
	nodes, links := writeFixtures(t)
	_, err := Load(nodes, links, Overrides{CapUnit: "tbps"})
	assert.Error(t, err)
}
