package strategy_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genofl/genofl/pkg/checkpoint"
	"github.com/genofl/genofl/pkg/fedavg"
	"github.com/genofl/genofl/pkg/strategy"
	"github.com/genofl/genofl/pkg/tracking"
)

func newStrategy(t *testing.T) (*strategy.Strategy, *checkpoint.Tracker) {
	t.Helper()

	ckpt, err := checkpoint.NewTracker(t.TempDir(), slog.Default())
	require.NoError(t, err)
	ev := strategy.NewRoundEvaluator(4, tracking.NewNoop(), slog.Default())

	return strategy.New(ev, ckpt, slog.Default()), ckpt
}

func evalResults(t *testing.T) []fedavg.EvalResult {
	t.Helper()

	out := make([]fedavg.EvalResult, 0, 3)
	for _, p := range plainPayloads(t) {
		out = append(out, fedavg.EvalResult{
			NodeID:     p.NodeID,
			NumSamples: p.NumSamples,
			Payload:    p.Metrics,
		})
	}

	return out
}

func TestAggregateEvaluateRecordsHistory(t *testing.T) {
	t.Parallel()

	strat, ckpt := newStrategy(t)

	_, mapping, err := strat.AggregateEvaluate(context.Background(), 1, evalResults(t), nil)
	require.NoError(t, err)
	require.NotNil(t, mapping)
	assert.InDelta(t, 0.225, mapping["val_loss"].(float64), 1e-9)

	history := ckpt.History()
	require.Len(t, history, 1)
	assert.InDelta(t, 0.225, history[0], 1e-9)
}

func TestAggregateEvaluateEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	strat, ckpt := newStrategy(t)

	loss, mapping, err := strat.AggregateEvaluate(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, loss)
	assert.Nil(t, mapping)
	assert.Empty(t, ckpt.History())
}

func TestAggregateFitSavesOnImprovement(t *testing.T) {
	t.Parallel()

	strat, ckpt := newStrategy(t)

	fit := []fedavg.FitResult{
		{NodeID: "node-0", Params: fedavg.Parameters{{Name: "w", Values: []float64{1, 2}}}, NumSamples: 10},
	}

	ckpt.Record(1, 0.5)
	params, err := strat.AggregateFit(1, fit, nil)
	require.NoError(t, err)
	assert.False(t, params.Empty())

	snap, err := ckpt.LoadBest()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, params, snap.Layers)
}

func TestAggregateFitEmptyDoesNotCheckpoint(t *testing.T) {
	t.Parallel()

	strat, ckpt := newStrategy(t)

	ckpt.Record(1, 0.5)
	params, err := strat.AggregateFit(1, nil, nil)
	require.NoError(t, err)
	assert.True(t, params.Empty())

	_, err = ckpt.LoadBest()
	assert.ErrorIs(t, err, checkpoint.ErrSnapshotMissing)
}

func TestConfigureEvaluatePassThrough(t *testing.T) {
	t.Parallel()

	strat, _ := newStrategy(t)

	params := fedavg.Parameters{{Name: "w", Values: []float64{1}}}
	ins, err := strat.ConfigureEvaluate(3, params, []string{"node-0", "node-1"})
	require.NoError(t, err)
	require.Len(t, ins, 2)
	assert.Equal(t, params, ins[0].Params)
	assert.Equal(t, 3, ins[0].Config["current_round"])
	assert.NotContains(t, ins[0].Config, "best_col")
}

func TestConfigureEvaluateFinalRoundLoadsBest(t *testing.T) {
	t.Parallel()

	strat, ckpt := newStrategy(t)

	best := fedavg.Parameters{{Name: "w", Values: []float64{42}}}
	ckpt.Record(1, 0.2)
	ckpt.MaybeSave(1, best)

	// The evaluator has selected a best column during training.
	_, _, err := strat.AggregateEvaluate(context.Background(), 2, candidateEvalResults(t), nil)
	require.NoError(t, err)

	stale := fedavg.Parameters{{Name: "w", Values: []float64{0}}}
	ins, err := strat.ConfigureEvaluate(strategy.FinalRound, stale, []string{"node-0"})
	require.NoError(t, err)
	require.Len(t, ins, 1)
	assert.Equal(t, best, ins[0].Params)
	assert.Equal(t, strategy.FinalRound, ins[0].Config["current_round"])
	assert.Equal(t, 1, ins[0].Config["best_col"])
}

func candidateEvalResults(t *testing.T) []fedavg.EvalResult {
	t.Helper()

	out := make([]fedavg.EvalResult, 0, 2)
	for _, p := range candidatePayloads(t) {
		out = append(out, fedavg.EvalResult{
			NodeID:     p.NodeID,
			NumSamples: p.NumSamples,
			Payload:    p.Metrics,
		})
	}

	return out
}

func TestConfigureEvaluateFinalRoundWithoutCheckpoint(t *testing.T) {
	t.Parallel()

	strat, _ := newStrategy(t)

	_, err := strat.ConfigureEvaluate(strategy.FinalRound, nil, []string{"node-0"})
	assert.ErrorIs(t, err, checkpoint.ErrSnapshotMissing)
}
