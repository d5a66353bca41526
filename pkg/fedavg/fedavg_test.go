package fedavg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genofl/genofl/pkg/fedavg"
)

func params(w ...float64) fedavg.Parameters {
	return fedavg.Parameters{{Name: "dense.weight", Values: w}}
}

func TestAggregateFit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []fedavg.FitResult
		want    []float64
		wantErr error
	}{
		{
			name: "weighted average of two nodes",
			results: []fedavg.FitResult{
				{NodeID: "a", Params: params(1, 2), NumSamples: 100},
				{NodeID: "b", Params: params(3, 6), NumSamples: 300},
			},
			want: []float64{2.5, 5},
		},
		{
			name: "single node passes through",
			results: []fedavg.FitResult{
				{NodeID: "a", Params: params(1.5, -2), NumSamples: 42},
			},
			want: []float64{1.5, -2},
		},
		{
			name: "layer length mismatch",
			results: []fedavg.FitResult{
				{NodeID: "a", Params: params(1, 2), NumSamples: 10},
				{NodeID: "b", Params: params(1), NumSamples: 10},
			},
			wantErr: fedavg.ErrLayerMismatch,
		},
	}

	alg := fedavg.New(nil)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := alg.AggregateFit(1, tc.results, nil)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)

				return
			}
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.InDeltaSlice(t, tc.want, got[0].Values, 1e-9)
		})
	}
}

func TestAggregateFitEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	got, err := fedavg.New(nil).AggregateFit(3, nil, nil)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestAggregateFitDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	a := params(1, 2)
	b := params(3, 4)
	_, err := fedavg.New(nil).AggregateFit(1, []fedavg.FitResult{
		{Params: a, NumSamples: 10},
		{Params: b, NumSamples: 10},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, a[0].Values)
	assert.Equal(t, []float64{3, 4}, b[0].Values)
}

func TestAggregateEvaluate(t *testing.T) {
	t.Parallel()

	alg := fedavg.New(nil)

	loss, err := alg.AggregateEvaluate(1, []fedavg.EvalResult{
		{Loss: 0.2, NumSamples: 100},
		{Loss: 0.4, NumSamples: 50},
		{Loss: 0.1, NumSamples: 50},
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, loss)
	assert.InDelta(t, 0.225, *loss, 1e-9)

	loss, err = alg.AggregateEvaluate(1, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, loss)
}

func TestConfigureEvaluate(t *testing.T) {
	t.Parallel()

	alg := fedavg.New(func(round int) map[string]any {
		return map[string]any{"current_round": round, "tag": "x"}
	})

	ins := alg.ConfigureEvaluate(7, params(1), []string{"a", "b"})
	require.Len(t, ins, 2)
	assert.Equal(t, "a", ins[0].NodeID)
	assert.Equal(t, 7, ins[0].Config["current_round"])
	assert.Equal(t, "x", ins[1].Config["tag"])
}

func TestConfigureEvaluateInstructionsDoNotAlias(t *testing.T) {
	t.Parallel()

	global := params(1, 2, 3)
	ins := fedavg.New(nil).ConfigureEvaluate(2, global, []string{"a", "b"})
	require.Len(t, ins, 2)

	ins[0].Params[0].Values[0] = 99
	assert.Equal(t, []float64{1, 2, 3}, global[0].Values)
	assert.Equal(t, []float64{1, 2, 3}, ins[1].Params[0].Values)
}
