package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/checkpoint"
	"github.com/genofl/genofl/pkg/fedavg"
	"github.com/genofl/genofl/pkg/mqtt"
	"github.com/genofl/genofl/pkg/storage"
	"github.com/genofl/genofl/pkg/strategy"
	"github.com/genofl/genofl/pkg/tracking"
)

const resultBuffer = 64

// runner drives one training run of one experiment: the sequential round
// loop, result collection from nodes, and the final centralized evaluation.
type runner struct {
	exp    experiment.Experiment
	runsDB storage.RunRepository
	pubsub mqtt.PubSub
	logger *slog.Logger

	evaluator *strategy.RoundEvaluator
	strat     *strategy.Strategy
	ckpt      *checkpoint.Tracker

	fitCh  chan experiment.FitResult
	evalCh chan experiment.EvaluateResult
}

func newRunner(exp experiment.Experiment, runsDB storage.RunRepository, pubsub mqtt.PubSub, logger *slog.Logger) *runner {
	return &runner{
		exp:    exp,
		runsDB: runsDB,
		pubsub: pubsub,
		logger: logger.With(slog.String("experiment_id", exp.ID)),
		fitCh:  make(chan experiment.FitResult, resultBuffer),
		evalCh: make(chan experiment.EvaluateResult, resultBuffer),
	}
}

// Run executes the full round loop. It is the single control thread of the
// aggregation core: strategy, evaluator and checkpoint tracker are only ever
// touched from here.
func (r *runner) Run(ctx context.Context) error {
	ckpt, err := checkpoint.NewTracker(r.exp.SnapshotDir, r.logger)
	if err != nil {
		return err
	}
	r.ckpt = ckpt

	tracker := tracking.Tracker(tracking.NewNoop())
	if r.exp.TrackingURL != "" {
		tracker = tracking.NewHTTP(r.exp.TrackingURL, r.exp.Name, 10*time.Second, r.logger)
	}
	r.evaluator = strategy.NewRoundEvaluator(r.exp.EpochsInRound, tracker, r.logger)
	r.strat = strategy.New(r.evaluator, ckpt, r.logger)

	if err := r.subscribe(ctx); err != nil {
		return err
	}
	defer r.unsubscribe(ctx)

	run := experiment.Run{
		ExperimentID: r.exp.ID,
		BestCol:      -1,
		State:        experiment.Running,
		StartedAt:    time.Now(),
	}
	if err := r.runsDB.Save(ctx, run); err != nil {
		return err
	}

	var params fedavg.Parameters
	for rnd := 1; rnd <= r.exp.Rounds; rnd++ {
		r.announceRound(ctx, rnd)

		var quorum bool
		params, quorum, err = r.fitRound(ctx, rnd, params)
		if err != nil {
			return r.fail(ctx, run, err)
		}

		if quorum {
			if err := r.evaluateRound(ctx, rnd, params); err != nil {
				return r.fail(ctx, run, err)
			}
		}

		run.Round = rnd
		run.History = r.ckpt.History()
		run.BestCol = r.evaluator.BestCol()
		if err := r.runsDB.Save(ctx, run); err != nil {
			return r.fail(ctx, run, err)
		}
	}

	// Final centralized evaluation with the best stored parameters.
	if err := r.evaluateRound(ctx, strategy.FinalRound, params); err != nil {
		return r.fail(ctx, run, err)
	}

	run.History = r.ckpt.History()
	run.BestCol = r.evaluator.BestCol()
	run.State = experiment.Completed
	run.FinishedAt = time.Now()

	return r.runsDB.Save(ctx, run)
}

func (r *runner) fail(ctx context.Context, run experiment.Run, cause error) error {
	run.State = experiment.Failed
	run.Error = cause.Error()
	run.FinishedAt = time.Now()
	if err := r.runsDB.Save(ctx, run); err != nil {
		r.logger.Error("Failed to persist failed run", slog.Any("error", err))
	}

	return cause
}

// announceRound is informational for observers on the round-start topic;
// nodes act on the fit and evaluate instructions.
func (r *runner) announceRound(ctx context.Context, rnd int) {
	topic := fmt.Sprintf(mqtt.RoundStartTopic, r.exp.ID)
	msg := map[string]any{
		"experiment_id": r.exp.ID,
		"round":         rnd,
		"rounds":        r.exp.Rounds,
	}
	if err := r.pubsub.Publish(ctx, topic, msg); err != nil {
		r.logger.Warn("Failed to announce round start",
			slog.Int("round", rnd),
			slog.Any("error", err))
	}
}

// fitRound returns the (possibly unchanged) global parameters and whether
// the round met the participation quorum. A sub-quorum round is skipped, not
// fatal: training continues with the previous parameters.
func (r *runner) fitRound(ctx context.Context, rnd int, params fedavg.Parameters) (fedavg.Parameters, bool, error) {
	ins := experiment.FitIns{
		ExperimentID: r.exp.ID,
		Round:        rnd,
		Layers:       params,
		Config: map[string]any{
			"current_round":   rnd,
			"epochs_in_round": r.exp.EpochsInRound,
			"phenotype":       r.exp.Phenotype,
		},
	}
	if err := r.pubsub.Publish(ctx, fmt.Sprintf(mqtt.FitTopic, r.exp.ID), ins); err != nil {
		return nil, false, fmt.Errorf("failed to broadcast fit instructions: %w", err)
	}

	results, failures := r.collectFit(ctx, rnd)
	r.logger.Info("Collected fit results",
		slog.Int("round", rnd),
		slog.Int("results", len(results)),
		slog.Int("failures", len(failures)))
	if len(results) < r.exp.MinNodes {
		r.logger.Warn("Skipping round, not enough nodes reported",
			slog.Int("round", rnd),
			slog.Int("results", len(results)),
			slog.Int("min_nodes", r.exp.MinNodes))

		return params, false, nil
	}

	combined, err := r.strat.AggregateFit(rnd, results, failures)
	if err != nil {
		return nil, false, err
	}
	if combined.Empty() {
		// Defined no-op: keep broadcasting the previous parameters.
		return params, true, nil
	}

	return combined, true, nil
}

func (r *runner) evaluateRound(ctx context.Context, rnd int, params fedavg.Parameters) error {
	instructions, err := r.strat.ConfigureEvaluate(rnd, params, r.exp.Nodes)
	if err != nil {
		return err
	}

	// All nodes receive the same parameters and config; one broadcast
	// carries the round.
	ins := experiment.EvaluateIns{
		ExperimentID: r.exp.ID,
		Round:        rnd,
		Layers:       instructions[0].Params,
		Config:       instructions[0].Config,
	}
	if err := r.pubsub.Publish(ctx, fmt.Sprintf(mqtt.EvaluateTopic, r.exp.ID), ins); err != nil {
		return fmt.Errorf("failed to broadcast evaluate instructions: %w", err)
	}

	results, failures := r.collectEvaluate(ctx, rnd)
	_, _, err = r.strat.AggregateEvaluate(ctx, rnd, results, failures)

	return err
}

func (r *runner) collectFit(ctx context.Context, rnd int) ([]fedavg.FitResult, []error) {
	deadline := time.NewTimer(r.exp.RoundTimeout)
	defer deadline.Stop()

	seen := make(map[string]bool)
	var out []fedavg.FitResult
	for len(out) < len(r.exp.Nodes) {
		select {
		case res := <-r.fitCh:
			if res.Round != rnd || seen[res.NodeID] {
				continue
			}
			seen[res.NodeID] = true
			out = append(out, fedavg.FitResult{
				NodeID:     res.NodeID,
				Params:     res.Layers,
				NumSamples: res.NumSamples,
			})
		case <-deadline.C:
			return out, r.stragglers(seen)
		case <-ctx.Done():
			return out, []error{ctx.Err()}
		}
	}

	return out, nil
}

func (r *runner) collectEvaluate(ctx context.Context, rnd int) ([]fedavg.EvalResult, []error) {
	deadline := time.NewTimer(r.exp.RoundTimeout)
	defer deadline.Stop()

	seen := make(map[string]bool)
	var out []fedavg.EvalResult
	for len(out) < len(r.exp.Nodes) {
		select {
		case res := <-r.evalCh:
			if res.Round != rnd || seen[res.NodeID] {
				continue
			}
			seen[res.NodeID] = true
			out = append(out, fedavg.EvalResult{
				NodeID:     res.NodeID,
				Loss:       res.Loss,
				NumSamples: res.NumSamples,
				Payload:    res.Metrics,
			})
		case <-deadline.C:
			return out, r.stragglers(seen)
		case <-ctx.Done():
			return out, []error{ctx.Err()}
		}
	}

	return out, nil
}

// stragglers reports the nodes that missed the round deadline. They fail the
// round, not the run.
func (r *runner) stragglers(seen map[string]bool) []error {
	var failures []error
	for _, n := range r.exp.Nodes {
		if !seen[n] {
			failures = append(failures, fmt.Errorf("node %s missed the round deadline", n))
		}
	}

	return failures
}

func (r *runner) subscribe(ctx context.Context) error {
	fitTopic := fmt.Sprintf(mqtt.FitResultsTopic, r.exp.ID)
	if err := r.pubsub.Subscribe(ctx, fitTopic, r.handleFitResult); err != nil {
		return fmt.Errorf("failed to subscribe to fit results: %w", err)
	}

	evalTopic := fmt.Sprintf(mqtt.EvaluateResultsTopic, r.exp.ID)
	if err := r.pubsub.Subscribe(ctx, evalTopic, r.handleEvaluateResult); err != nil {
		return fmt.Errorf("failed to subscribe to evaluate results: %w", err)
	}

	return nil
}

func (r *runner) unsubscribe(ctx context.Context) {
	for _, topic := range []string{
		fmt.Sprintf(mqtt.FitResultsTopic, r.exp.ID),
		fmt.Sprintf(mqtt.EvaluateResultsTopic, r.exp.ID),
	} {
		if err := r.pubsub.Unsubscribe(ctx, topic); err != nil {
			r.logger.Warn("Failed to unsubscribe", slog.String("topic", topic), slog.Any("error", err))
		}
	}
}

func (r *runner) handleFitResult(topic string, msg map[string]any) error {
	var res experiment.FitResult
	if err := remarshal(msg, &res); err != nil {
		return fmt.Errorf("malformed fit result on %s: %w", topic, err)
	}

	select {
	case r.fitCh <- res:
	default:
		r.logger.Warn("Dropping fit result, collector buffer full", slog.String("node_id", res.NodeID))
	}

	return nil
}

func (r *runner) handleEvaluateResult(topic string, msg map[string]any) error {
	var res experiment.EvaluateResult
	if err := remarshal(msg, &res); err != nil {
		return fmt.Errorf("malformed evaluate result on %s: %w", topic, err)
	}

	select {
	case r.evalCh <- res:
	default:
		r.logger.Warn("Dropping evaluate result, collector buffer full", slog.String("node_id", res.NodeID))
	}

	return nil
}

// remarshal converts the pubsub layer's generic map into a typed message.
func remarshal(msg map[string]any, v any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}
