package simconfig

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLayersOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes_csv: nodes.csv\nlinks_csv: links.csv\nseed: 42\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "nodes.csv", cfg.NodesCSV)
	assert.Equal(t, "all_shortest", cfg.PathDBMode) // inherited from Default
}

func TestValidateRejectsMissingTopology(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.Validate(), ErrMissingTopology)
}

func TestValidateRejectsBadEnum(t *testing.T) {
	cfg := Default()
	cfg.NodesCSV, cfg.LinksCSV = "n.csv", "l.csv"
	cfg.PathDBMode = "bogus"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidPathDB)
}

func TestEffectiveRateCapTranslatesZeroToUnlimited(t *testing.T) {
	cfg := Default()
	cfg.RateCap = 0
	assert.True(t, math.IsInf(cfg.EffectiveRateCap(), 1))
	cfg.RateCap = 500
	assert.Equal(t, 500.0, cfg.EffectiveRateCap())
}
