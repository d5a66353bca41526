package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/genofl/genofl/pkg/metrics"
	"github.com/genofl/genofl/pkg/tracking"
)

// ClientPayload is one node's serialized metric record for a round, plus the
// sample count used as its averaging weight.
type ClientPayload struct {
	NodeID     string
	NumSamples int
	Metrics    []byte
}

// RoundEvaluator deserializes all nodes' metric payloads for a round, reduces
// them into one record, logs and emits it, and hands the aggregated
// validation loss back to the strategy.
type RoundEvaluator struct {
	epochsInRound int
	tracker       tracking.Tracker
	logger        *slog.Logger
	bestCol       int
}

func NewRoundEvaluator(epochsInRound int, tracker tracking.Tracker, logger *slog.Logger) *RoundEvaluator {
	return &RoundEvaluator{
		epochsInRound: epochsInRound,
		tracker:       tracker,
		logger:        logger,
		bestCol:       -1,
	}
}

// BestCol is the candidate index selected by the most recent best-of
// reduction, or -1 when none has run.
func (e *RoundEvaluator) BestCol() int { return e.bestCol }

// EvaluateRound produces the round's scalar validation loss and the flat
// result mapping handed back to the aggregation layer. For the final
// centralized evaluation (round FinalRound) the mapping also carries the
// best-candidate index so nodes score the sub-model chosen during training.
func (e *RoundEvaluator) EvaluateRound(ctx context.Context, round int, payloads []ClientPayload) (float64, map[string]any, error) {
	if len(payloads) == 0 {
		return 0, nil, metrics.ErrEmptyInput
	}

	fed := metrics.FederatedRoundMetrics{Epoch: round * e.epochsInRound}
	for _, p := range payloads {
		rec, err := metrics.Decode(p.Metrics)
		if err != nil {
			return 0, nil, fmt.Errorf("node %s: %w", p.NodeID, err)
		}
		fed.Clients = append(fed.Clients, rec)
	}

	reduced, err := e.reduce(fed)
	if err != nil {
		return 0, nil, err
	}

	e.logger.Info("Round evaluated",
		slog.Int("round", round),
		slog.Int("nodes", len(payloads)),
		slog.String("metrics", reduced.String()))
	if round == FinalRound {
		e.logger.Info("Logging final centralized evaluation results", slog.Int("best_col", e.bestCol))
	}

	result := make(map[string]any)
	for k, v := range reduced.Fields() {
		e.tracker.LogMetric(ctx, k, v, reduced.Epoch)
		result[k] = v
	}
	result["epoch"] = reduced.Epoch
	if round == FinalRound {
		result["best_col"] = e.bestCol
	}

	return reduced.Val.Loss, result, nil
}

// reduce is the two-level reduction: candidate-shaped rounds are averaged
// per candidate column across nodes and then collapsed by best-of selection,
// plain rounds by a sample-count-weighted mean across nodes.
func (e *RoundEvaluator) reduce(fed metrics.FederatedRoundMetrics) (metrics.ClientRoundMetrics, error) {
	if _, candidates := fed.Clients[0].(metrics.CandidateSetMetrics); candidates {
		agg, err := fed.Reduce(metrics.LassoNetBest)
		if err != nil {
			return metrics.ClientRoundMetrics{}, err
		}

		set, ok := agg.(metrics.CandidateSetMetrics)
		if !ok {
			return metrics.ClientRoundMetrics{}, metrics.ErrInvalidShape
		}
		reduced, best, err := set.Reduce(metrics.LassoNetBest)
		if err != nil {
			return metrics.ClientRoundMetrics{}, err
		}
		e.bestCol = best

		return reduced, nil
	}

	agg, err := fed.Reduce(metrics.Mean)
	if err != nil {
		return metrics.ClientRoundMetrics{}, err
	}

	reduced, ok := agg.(metrics.ClientRoundMetrics)
	if !ok {
		return metrics.ClientRoundMetrics{}, metrics.ErrInvalidShape
	}

	return reduced, nil
}
