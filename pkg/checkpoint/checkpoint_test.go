package checkpoint_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genofl/genofl/pkg/checkpoint"
	"github.com/genofl/genofl/pkg/fedavg"
)

func newTracker(t *testing.T) *checkpoint.Tracker {
	t.Helper()

	tr, err := checkpoint.NewTracker(t.TempDir(), slog.Default())
	require.NoError(t, err)

	return tr
}

func params(v float64) fedavg.Parameters {
	return fedavg.Parameters{
		{Name: "dense.weight", Values: []float64{v, v + 1}},
		{Name: "dense.bias", Values: []float64{-v}},
	}
}

func TestMaybeSaveOnNewMinimum(t *testing.T) {
	t.Parallel()

	tr := newTracker(t)

	// Ties count as a new best: rounds 0, 1 and 3 save, round 2 does not.
	losses := []float64{0.5, 0.3, 0.4, 0.3}
	for rnd, loss := range losses {
		tr.Record(rnd, loss)
		tr.MaybeSave(rnd, params(float64(rnd)))
	}

	snap, err := tr.LoadBest()
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Round)
	assert.Equal(t, params(3), snap.Layers)
	assert.Equal(t, losses, tr.History())
}

func TestMaybeSaveSkipsNonImproving(t *testing.T) {
	t.Parallel()

	tr := newTracker(t)

	tr.Record(0, 0.3)
	tr.MaybeSave(0, params(0))
	tr.Record(1, 0.4)
	tr.MaybeSave(1, params(1))

	snap, err := tr.LoadBest()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Round)
}

func TestMaybeSaveEmptyParamsIsNoOp(t *testing.T) {
	t.Parallel()

	tr := newTracker(t)

	tr.Record(0, 0.1)
	tr.MaybeSave(0, nil)

	_, err := tr.LoadBest()
	assert.ErrorIs(t, err, checkpoint.ErrSnapshotMissing)
}

func TestLoadBestBeforeAnySave(t *testing.T) {
	t.Parallel()

	_, err := newTracker(t).LoadBest()
	assert.ErrorIs(t, err, checkpoint.ErrSnapshotMissing)
}

func TestExport(t *testing.T) {
	t.Parallel()

	tr := newTracker(t)
	tr.Record(0, 0.2)
	tr.MaybeSave(0, params(7))

	dst := filepath.Join(t.TempDir(), "final_model.ckpt")
	require.NoError(t, tr.Export(dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestExportWithoutSnapshot(t *testing.T) {
	t.Parallel()

	err := newTracker(t).Export(filepath.Join(t.TempDir(), "out.ckpt"))
	assert.ErrorIs(t, err, checkpoint.ErrSnapshotMissing)
}
