package node_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/node"
	"github.com/genofl/genofl/pkg/fedavg"
	"github.com/genofl/genofl/pkg/metrics"
	"github.com/genofl/genofl/pkg/mqtt"
	"github.com/genofl/genofl/pkg/mqtt/mocks"
)

type fakeTrainer struct {
	samples int
	loss    float64
}

func (f fakeTrainer) Fit(_ context.Context, ins experiment.FitIns) (fedavg.Parameters, int, error) {
	return fedavg.Parameters{
		{Name: "dense.weight", Values: []float64{float64(ins.Round), 1}},
	}, f.samples, nil
}

func (f fakeTrainer) Evaluate(context.Context, experiment.EvaluateIns) (node.EvalReport, error) {
	return node.EvalReport{
		Loss:       f.loss,
		NumSamples: f.samples,
		Metrics: metrics.ClientRoundMetrics{
			Train: metrics.PartitionMetrics{Partition: metrics.Train, Loss: f.loss, R2: 0.6, Samples: f.samples},
			Val:   metrics.PartitionMetrics{Partition: metrics.Val, Loss: f.loss, R2: 0.5, Samples: f.samples},
		},
	}, nil
}

func (f fakeTrainer) Close(context.Context) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc string
		cfg  node.Config
		ok   bool
	}{
		{
			desc: "valid",
			cfg:  node.Config{ID: "site-a", ExperimentID: "exp-1", LivenessInterval: time.Second},
			ok:   true,
		},
		{
			desc: "missing id",
			cfg:  node.Config{ExperimentID: "exp-1", LivenessInterval: time.Second},
		},
		{
			desc: "missing experiment id",
			cfg:  node.Config{ID: "site-a", LivenessInterval: time.Second},
		},
		{
			desc: "zero liveness interval",
			cfg:  node.Config{ID: "site-a", ExperimentID: "exp-1"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func startNode(t *testing.T, bus *mocks.Bus, cfg node.Config, trainer node.Trainer) {
	t.Helper()

	svc, err := node.NewService(cfg, bus, trainer, discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
			t.Errorf("node run failed: %v", err)
		}
	}()
	// Run subscribes before announcing on the alive topic.
	aliveCh := make(chan struct{}, 1)
	err = bus.Subscribe(ctx, fmt.Sprintf(mqtt.AliveTopic, cfg.ExperimentID), func(string, map[string]any) error {
		select {
		case aliveCh <- struct{}{}:
		default:
		}

		return nil
	})
	require.NoError(t, err)
	select {
	case <-aliveCh:
	case <-time.After(5 * time.Second):
		t.Fatal("node never announced itself")
	}
}

func TestNodeAnswersFitInstructions(t *testing.T) {
	t.Parallel()

	bus := mocks.NewBus()
	cfg := node.Config{ID: "site-a", ExperimentID: "exp-1", LivenessInterval: 50 * time.Millisecond}
	startNode(t, bus, cfg, fakeTrainer{samples: 40, loss: 0.2})

	results := make(chan experiment.FitResult, 1)
	err := bus.Subscribe(context.Background(), fmt.Sprintf(mqtt.FitResultsTopic, "exp-1"), func(_ string, msg map[string]any) error {
		res := experiment.FitResult{
			NodeID:     msg["node_id"].(string),
			Round:      int(msg["round"].(float64)),
			NumSamples: int(msg["num_samples"].(float64)),
		}
		results <- res

		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), fmt.Sprintf(mqtt.FitTopic, "exp-1"), experiment.FitIns{
		ExperimentID: "exp-1",
		Round:        3,
	})
	require.NoError(t, err)

	select {
	case res := <-results:
		assert.Equal(t, "site-a", res.NodeID)
		assert.Equal(t, 3, res.Round)
		assert.Equal(t, 40, res.NumSamples)
	case <-time.After(5 * time.Second):
		t.Fatal("no fit result received")
	}
}

func TestNodeAnswersEvaluateInstructions(t *testing.T) {
	t.Parallel()

	bus := mocks.NewBus()
	cfg := node.Config{ID: "site-b", ExperimentID: "exp-2", LivenessInterval: 50 * time.Millisecond}
	startNode(t, bus, cfg, fakeTrainer{samples: 25, loss: 0.35})

	payloads := make(chan []byte, 1)
	err := bus.Subscribe(context.Background(), fmt.Sprintf(mqtt.EvaluateResultsTopic, "exp-2"), func(_ string, msg map[string]any) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		var res experiment.EvaluateResult
		if err := json.Unmarshal(data, &res); err != nil {
			return err
		}
		payloads <- res.Metrics

		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), fmt.Sprintf(mqtt.EvaluateTopic, "exp-2"), experiment.EvaluateIns{
		ExperimentID: "exp-2",
		Round:        1,
	})
	require.NoError(t, err)

	select {
	case payload := <-payloads:
		rec, err := metrics.Decode(payload)
		require.NoError(t, err)
		require.Equal(t, metrics.KindClientRound, rec.Kind())
		assert.InDelta(t, 0.35, rec.ValLoss(), 1e-9)
		assert.Equal(t, 25, rec.Samples())
	case <-time.After(5 * time.Second):
		t.Fatal("no evaluate result received")
	}
}
