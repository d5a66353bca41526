// Package strategy wraps the base federated-averaging algorithm with
// per-round metric evaluation and best-model checkpointing. The wrapper holds
// the base algorithm explicitly and delegates parameter arithmetic to it
// untouched.
package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/genofl/genofl/pkg/checkpoint"
	"github.com/genofl/genofl/pkg/fedavg"
)

// FinalRound is the reserved round index for the final centralized
// evaluation with the best stored parameters.
const FinalRound = -1

type Strategy struct {
	base      fedavg.Algorithm
	evaluator *RoundEvaluator
	ckpt      *checkpoint.Tracker
	logger    *slog.Logger
}

// New builds a strategy around a fresh FedAvg whose evaluate-config callback
// is owned by the strategy, so every instruction carries the round index and,
// on the final round, the selected best-candidate column.
func New(evaluator *RoundEvaluator, ckpt *checkpoint.Tracker, logger *slog.Logger) *Strategy {
	s := &Strategy{evaluator: evaluator, ckpt: ckpt, logger: logger}
	s.base = fedavg.New(s.EvaluateConfig)

	return s
}

// NewWithBase wraps an existing base algorithm. The caller is responsible for
// wiring EvaluateConfig into it.
func NewWithBase(base fedavg.Algorithm, evaluator *RoundEvaluator, ckpt *checkpoint.Tracker, logger *slog.Logger) *Strategy {
	return &Strategy{base: base, evaluator: evaluator, ckpt: ckpt, logger: logger}
}

// EvaluateConfig is the per-round evaluate-configuration callback.
func (s *Strategy) EvaluateConfig(round int) map[string]any {
	cfg := map[string]any{"current_round": round}
	if round == FinalRound {
		cfg["best_col"] = s.evaluator.BestCol()
	}

	return cfg
}

// ConfigureEvaluate passes through to the base algorithm, except on the final
// round, where the broadcast parameters are replaced with the best stored
// snapshot. A missing snapshot is fatal: no round ever improved on the
// initial loss and there is nothing correct to evaluate.
func (s *Strategy) ConfigureEvaluate(round int, params fedavg.Parameters, nodes []string) ([]fedavg.EvaluateIns, error) {
	if round == FinalRound {
		snap, err := s.ckpt.LoadBest()
		if err != nil {
			return nil, fmt.Errorf("final evaluation needs a saved checkpoint (were enough rounds run?): %w", err)
		}
		s.logger.Info("Loading best parameters for final evaluation", slog.Int("saved_round", snap.Round))
		params = snap.Layers
	}

	return s.base.ConfigureEvaluate(round, params, nodes), nil
}

// AggregateEvaluate runs the round evaluator, records the aggregated
// validation loss in the checkpoint history, and delegates to the base
// algorithm for its own bookkeeping. Empty results are a defined no-op: no
// loss, no tracker update.
func (s *Strategy) AggregateEvaluate(ctx context.Context, round int, results []fedavg.EvalResult, failures []error) (*float64, map[string]any, error) {
	if len(results) == 0 {
		s.logger.Warn("No evaluate results for round, skipping aggregation",
			slog.Int("round", round),
			slog.Int("failures", len(failures)))

		return nil, nil, nil
	}

	payloads := make([]ClientPayload, 0, len(results))
	for _, r := range results {
		payloads = append(payloads, ClientPayload{
			NodeID:     r.NodeID,
			NumSamples: r.NumSamples,
			Metrics:    r.Payload,
		})
	}

	valLoss, mapping, err := s.evaluator.EvaluateRound(ctx, round, payloads)
	if err != nil {
		return nil, nil, err
	}
	s.ckpt.Record(round, valLoss)

	baseLoss, err := s.base.AggregateEvaluate(round, results, failures)
	if err != nil {
		return nil, nil, err
	}

	return baseLoss, mapping, nil
}

// AggregateFit delegates parameter combination to the base algorithm and then
// offers the combined parameters to the checkpoint tracker.
func (s *Strategy) AggregateFit(round int, results []fedavg.FitResult, failures []error) (fedavg.Parameters, error) {
	params, err := s.base.AggregateFit(round, results, failures)
	if err != nil {
		return nil, err
	}
	s.ckpt.MaybeSave(round, params)

	return params, nil
}
