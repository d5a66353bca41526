package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/errors"
	"github.com/genofl/genofl/pkg/storage"
)

func exp(id string) experiment.Experiment {
	return experiment.Experiment{
		ID:            id,
		Name:          "height-gwas",
		Phenotype:     "standing_height",
		Nodes:         []string{"node-0", "node-1"},
		Rounds:        8,
		EpochsInRound: 4,
		MinNodes:      2,
		RoundTimeout:  time.Minute,
	}
}

func TestMemoryExperimentsCRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryExperiments()

	require.NoError(t, repo.Create(ctx, exp("e1")))
	assert.ErrorIs(t, repo.Create(ctx, exp("e1")), errors.ErrEntityExists)
	assert.ErrorIs(t, repo.Create(ctx, experiment.Experiment{}), errors.ErrEmptyKey)

	got, err := repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "height-gwas", got.Name)

	got.State = experiment.Running
	require.NoError(t, repo.Update(ctx, got))
	got, err = repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, experiment.Running, got.State)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "e1"))
	_, err = repo.Get(ctx, "e1")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMemoryExperimentsList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryExperiments()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, exp(id)))
	}

	page, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), page.Total)
	require.Len(t, page.Experiments, 1)
	assert.Equal(t, "b", page.Experiments[0].ID)

	page, err = repo.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page.Experiments)
}

func TestMemoryRuns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := storage.NewMemoryRuns()

	_, err := repo.Get(ctx, "e1")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	run := experiment.Run{ExperimentID: "e1", Round: 3, History: []float64{0.5, 0.3, 0.4}, BestCol: 2}
	require.NoError(t, repo.Save(ctx, run))

	got, err := repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, run, got)
}
