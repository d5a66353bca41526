package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genofl/genofl/pkg/metrics"
)

func pm(p metrics.Partition, loss, r2 float64, samples int) metrics.PartitionMetrics {
	return metrics.PartitionMetrics{Partition: p, Loss: loss, R2: r2, Epoch: 4, Samples: samples}
}

func TestReduceMean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		records  []metrics.PartitionMetrics
		wantLoss float64
		wantR2   float64
		wantN    int
		wantErr  error
	}{
		{
			name: "weighted mean over three nodes",
			records: []metrics.PartitionMetrics{
				pm(metrics.Val, 0.2, 0.5, 100),
				pm(metrics.Val, 0.4, 0.3, 50),
				pm(metrics.Val, 0.1, 0.7, 50),
			},
			wantLoss: 0.225,
			wantR2:   0.5,
			wantN:    200,
		},
		{
			name:     "singleton returned unchanged",
			records:  []metrics.PartitionMetrics{pm(metrics.Train, 0.33, 0.12, 77)},
			wantLoss: 0.33,
			wantR2:   0.12,
			wantN:    77,
		},
		{
			name:    "empty input",
			records: nil,
			wantErr: metrics.ErrEmptyInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := metrics.Reduce(tc.records, metrics.Mean)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)

				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.wantLoss, got.Loss, 1e-9)
			assert.InDelta(t, tc.wantR2, got.R2, 1e-9)
			assert.Equal(t, tc.wantN, got.Samples)
		})
	}
}

func TestReduceMeanBounded(t *testing.T) {
	t.Parallel()

	records := []metrics.PartitionMetrics{
		pm(metrics.Val, 0.9, 0.1, 10),
		pm(metrics.Val, 0.2, 0.6, 90),
		pm(metrics.Val, 0.5, 0.4, 25),
	}

	got, err := metrics.Reduce(records, metrics.Mean)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Loss, 0.2)
	assert.LessOrEqual(t, got.Loss, 0.9)
}

func TestReduceInvalidStrategy(t *testing.T) {
	t.Parallel()

	_, err := metrics.Reduce([]metrics.PartitionMetrics{pm(metrics.Val, 0.2, 0.5, 10)}, "median")
	assert.ErrorIs(t, err, metrics.ErrInvalidReduction)

	_, err = metrics.Reduce([]metrics.PartitionMetrics{pm(metrics.Val, 0.2, 0.5, 10)}, metrics.LassoNetBest)
	assert.ErrorIs(t, err, metrics.ErrInvalidShape)
}

func candidateSet() metrics.CandidateSetMetrics {
	return metrics.CandidateSetMetrics{
		Train: []metrics.PartitionMetrics{
			pm(metrics.Train, 0.50, 0.40, 100),
			pm(metrics.Train, 0.45, 0.45, 100),
			pm(metrics.Train, 0.60, 0.30, 100),
		},
		Val: []metrics.PartitionMetrics{
			pm(metrics.Val, 0.55, 0.35, 40),
			pm(metrics.Val, 0.40, 0.52, 40),
			pm(metrics.Val, 0.70, 0.20, 40),
		},
		Epoch: 4,
	}
}

func TestCandidateSetReduceBest(t *testing.T) {
	t.Parallel()

	set := candidateSet()

	got, best, err := set.Reduce(metrics.LassoNetBest)
	require.NoError(t, err)
	assert.Equal(t, 1, best)
	assert.Equal(t, set.Val[1], got.Val)
	assert.Equal(t, set.Train[1], got.Train)
	assert.Nil(t, got.Test)

	maxR2 := set.Val[0].R2
	for _, vm := range set.Val {
		if vm.R2 > maxR2 {
			maxR2 = vm.R2
		}
	}
	assert.Equal(t, maxR2, got.Val.R2)
}

func TestCandidateSetReduceBestTieLowestIndex(t *testing.T) {
	t.Parallel()

	set := metrics.CandidateSetMetrics{
		Train: []metrics.PartitionMetrics{pm(metrics.Train, 0.5, 0.4, 10), pm(metrics.Train, 0.4, 0.4, 10)},
		Val:   []metrics.PartitionMetrics{pm(metrics.Val, 0.5, 0.4, 10), pm(metrics.Val, 0.4, 0.4, 10)},
	}

	_, best, err := set.Reduce(metrics.LassoNetBest)
	require.NoError(t, err)
	assert.Equal(t, 0, best)
}

func TestCandidateSetReduceMean(t *testing.T) {
	t.Parallel()

	got, best, err := candidateSet().Reduce(metrics.Mean)
	require.NoError(t, err)
	assert.Equal(t, -1, best)
	assert.InDelta(t, (0.55+0.40+0.70)/3, got.Val.Loss, 1e-9)
	assert.Equal(t, 120, got.Val.Samples)
}

func TestCandidateSetReduceShapeMismatch(t *testing.T) {
	t.Parallel()

	set := candidateSet()
	set.Test = []metrics.PartitionMetrics{pm(metrics.Test, 0.5, 0.3, 40)}

	_, _, err := set.Reduce(metrics.LassoNetBest)
	assert.ErrorIs(t, err, metrics.ErrInvalidShape)
}

func TestFederatedReduceMean(t *testing.T) {
	t.Parallel()

	fed := metrics.FederatedRoundMetrics{
		Clients: []metrics.Record{
			metrics.ClientRoundMetrics{Train: pm(metrics.Train, 0.3, 0.5, 100), Val: pm(metrics.Val, 0.2, 0.5, 100)},
			metrics.ClientRoundMetrics{Train: pm(metrics.Train, 0.5, 0.3, 50), Val: pm(metrics.Val, 0.4, 0.3, 50)},
			metrics.ClientRoundMetrics{Train: pm(metrics.Train, 0.2, 0.6, 50), Val: pm(metrics.Val, 0.1, 0.7, 50)},
		},
		Epoch: 8,
	}

	got, err := fed.Reduce(metrics.Mean)
	require.NoError(t, err)
	reduced, ok := got.(metrics.ClientRoundMetrics)
	require.True(t, ok)
	assert.InDelta(t, 0.225, reduced.Val.Loss, 1e-9)
	assert.Equal(t, 200, reduced.Val.Samples)
	assert.Equal(t, 8, reduced.Val.Epoch)
}

func TestFederatedReduceLassoNetBest(t *testing.T) {
	t.Parallel()

	nodeA := candidateSet()
	nodeB := candidateSet()
	// Shift node B so that column 1 stays the global winner.
	for i := range nodeB.Val {
		nodeB.Val[i].R2 -= 0.05
	}

	fed := metrics.FederatedRoundMetrics{Clients: []metrics.Record{nodeA, nodeB}, Epoch: 8}

	got, err := fed.Reduce(metrics.LassoNetBest)
	require.NoError(t, err)
	agg, ok := got.(metrics.CandidateSetMetrics)
	require.True(t, ok)
	require.Len(t, agg.Val, 3)

	reduced, best, err := agg.Reduce(metrics.LassoNetBest)
	require.NoError(t, err)
	assert.Equal(t, 1, best)
	assert.InDelta(t, (0.52+0.47)/2, reduced.Val.R2, 1e-9)
}

func TestFederatedReduceLassoNetBestTestMismatch(t *testing.T) {
	t.Parallel()

	withTest := func() metrics.CandidateSetMetrics {
		set := candidateSet()
		set.Test = []metrics.PartitionMetrics{
			pm(metrics.Test, 0.52, 0.33, 40),
			pm(metrics.Test, 0.42, 0.50, 40),
			pm(metrics.Test, 0.68, 0.22, 40),
		}

		return set
	}

	tests := []struct {
		name    string
		clients []metrics.Record
		wantErr error
	}{
		{
			name:    "test metrics on every node",
			clients: []metrics.Record{withTest(), withTest()},
		},
		{
			name:    "test metrics on one node only",
			clients: []metrics.Record{withTest(), candidateSet()},
			wantErr: metrics.ErrInvalidShape,
		},
		{
			name: "test sequence shorter than candidates",
			clients: []metrics.Record{
				withTest(),
				func() metrics.Record {
					set := withTest()
					set.Test = set.Test[:1]

					return set
				}(),
			},
			wantErr: metrics.ErrInvalidShape,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := metrics.FederatedRoundMetrics{Clients: tc.clients, Epoch: 8}.Reduce(metrics.LassoNetBest)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)

				return
			}
			require.NoError(t, err)
			agg, ok := got.(metrics.CandidateSetMetrics)
			require.True(t, ok)
			assert.Len(t, agg.Test, 3)
		})
	}
}

func TestFederatedReduceLassoNetBestZeroSamples(t *testing.T) {
	t.Parallel()

	zeroed := candidateSet()
	for i := range zeroed.Val {
		zeroed.Val[i].Samples = 0
	}

	_, err := metrics.FederatedRoundMetrics{Clients: []metrics.Record{zeroed, zeroed}, Epoch: 8}.Reduce(metrics.LassoNetBest)
	assert.ErrorIs(t, err, metrics.ErrInvalidShape)
}

func TestReduceMeanZeroSamples(t *testing.T) {
	t.Parallel()

	records := []metrics.PartitionMetrics{
		pm(metrics.Val, 0.2, 0.5, 0),
		pm(metrics.Val, 0.4, 0.3, 0),
	}

	_, err := metrics.Reduce(records, metrics.Mean)
	assert.ErrorIs(t, err, metrics.ErrInvalidShape)
}

func TestFederatedReduceLassoNetBestWrongShape(t *testing.T) {
	t.Parallel()

	fed := metrics.FederatedRoundMetrics{
		Clients: []metrics.Record{
			metrics.ClientRoundMetrics{Val: pm(metrics.Val, 0.2, 0.5, 100)},
		},
	}

	_, err := fed.Reduce(metrics.LassoNetBest)
	assert.ErrorIs(t, err, metrics.ErrInvalidShape)
}

func TestFederatedReduceEmpty(t *testing.T) {
	t.Parallel()

	_, err := metrics.FederatedRoundMetrics{}.Reduce(metrics.Mean)
	assert.ErrorIs(t, err, metrics.ErrEmptyInput)
}
