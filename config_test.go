package genofl_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	genofl "github.com/genofl/genofl"
)

func TestLoadExperimentFile(t *testing.T) {
	t.Parallel()

	content := `
[experiment]
name = "hypertension-gwas"
description = "LassoNet sweep over chromosome 3"
phenotype = "sbp"
nodes = ["site-a", "site-b", "site-c"]
rounds = 10
epochs_in_round = 2

[collection]
min_nodes = 2
round_timeout = "3m"

[tracking]
url = "http://localhost:5000"
`
	path := filepath.Join(t.TempDir(), "experiment.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := genofl.LoadExperimentFile(path)
	require.NoError(t, err)

	exp, err := cfg.ToExperiment()
	require.NoError(t, err)
	assert.Equal(t, "hypertension-gwas", exp.Name)
	assert.Equal(t, "sbp", exp.Phenotype)
	assert.Len(t, exp.Nodes, 3)
	assert.Equal(t, 10, exp.Rounds)
	assert.Equal(t, 2, exp.EpochsInRound)
	assert.Equal(t, 2, exp.MinNodes)
	assert.Equal(t, 3*time.Minute, exp.RoundTimeout)
	assert.Equal(t, "http://localhost:5000", exp.TrackingURL)
}

func TestLoadExperimentFileBadTimeout(t *testing.T) {
	t.Parallel()

	content := `
[experiment]
name = "bad"
nodes = ["site-a"]
rounds = 1

[collection]
round_timeout = "sideways"
`
	path := filepath.Join(t.TempDir(), "experiment.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := genofl.LoadExperimentFile(path)
	require.NoError(t, err)

	_, err = cfg.ToExperiment()
	assert.Error(t, err)
}

func TestLoadExperimentFileMissing(t *testing.T) {
	t.Parallel()

	_, err := genofl.LoadExperimentFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
