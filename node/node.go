// Package node is the data-node daemon: it holds private genotype data,
// trains on coordinator instructions, and reports parameter updates and
// metrics back over MQTT.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/metrics"
	"github.com/genofl/genofl/pkg/mqtt"
)

const instructionBuffer = 16

type Service struct {
	cfg     Config
	pubsub  mqtt.PubSub
	trainer Trainer
	logger  *slog.Logger

	fitCh  chan experiment.FitIns
	evalCh chan experiment.EvaluateIns
}

func NewService(cfg Config, pubsub mqtt.PubSub, trainer Trainer, logger *slog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		cfg:     cfg,
		pubsub:  pubsub,
		trainer: trainer,
		logger:  logger.With(slog.String("node_id", cfg.ID)),
		fitCh:   make(chan experiment.FitIns, instructionBuffer),
		evalCh:  make(chan experiment.EvaluateIns, instructionBuffer),
	}, nil
}

// Run subscribes to round instructions and processes them one at a time
// until ctx is cancelled. Training is sequential; rounds never overlap on a
// node.
func (s *Service) Run(ctx context.Context) error {
	fitTopic := fmt.Sprintf(mqtt.FitTopic, s.cfg.ExperimentID)
	if err := s.pubsub.Subscribe(ctx, fitTopic, s.handleFit); err != nil {
		return fmt.Errorf("failed to subscribe to fit instructions: %w", err)
	}

	evalTopic := fmt.Sprintf(mqtt.EvaluateTopic, s.cfg.ExperimentID)
	if err := s.pubsub.Subscribe(ctx, evalTopic, s.handleEvaluate); err != nil {
		return fmt.Errorf("failed to subscribe to evaluate instructions: %w", err)
	}

	s.logger.Info("Node ready",
		slog.String("experiment_id", s.cfg.ExperimentID),
		slog.String("fit_topic", fitTopic),
		slog.String("evaluate_topic", evalTopic))

	liveness := time.NewTicker(s.cfg.LivenessInterval)
	defer liveness.Stop()

	s.announce(ctx)

	for {
		select {
		case ins := <-s.fitCh:
			s.fit(ctx, ins)
		case ins := <-s.evalCh:
			s.evaluate(ctx, ins)
		case <-liveness.C:
			s.announce(ctx)
		case <-ctx.Done():
			return s.trainer.Close(context.WithoutCancel(ctx))
		}
	}
}

func (s *Service) announce(ctx context.Context) {
	topic := fmt.Sprintf(mqtt.AliveTopic, s.cfg.ExperimentID)
	msg := map[string]any{
		"node_id": s.cfg.ID,
		"status":  "alive",
	}
	if err := s.pubsub.Publish(ctx, topic, msg); err != nil {
		s.logger.Warn("Failed to publish liveness", slog.Any("error", err))
	}
}

func (s *Service) fit(ctx context.Context, ins experiment.FitIns) {
	params, numSamples, err := s.trainer.Fit(ctx, ins)
	if err != nil {
		s.logger.Error("Local training failed",
			slog.Int("round", ins.Round),
			slog.Any("error", err))

		return
	}

	res := experiment.FitResult{
		ExperimentID: s.cfg.ExperimentID,
		Round:        ins.Round,
		NodeID:       s.cfg.ID,
		NumSamples:   numSamples,
		Layers:       params,
	}
	topic := fmt.Sprintf(mqtt.FitResultsTopic, s.cfg.ExperimentID)
	if err := s.pubsub.Publish(ctx, topic, res); err != nil {
		s.logger.Error("Failed to publish fit result",
			slog.Int("round", ins.Round),
			slog.Any("error", err))

		return
	}

	s.logger.Info("Reported fit result",
		slog.Int("round", ins.Round),
		slog.Int("num_samples", numSamples))
}

func (s *Service) evaluate(ctx context.Context, ins experiment.EvaluateIns) {
	report, err := s.trainer.Evaluate(ctx, ins)
	if err != nil {
		s.logger.Error("Local evaluation failed",
			slog.Int("round", ins.Round),
			slog.Any("error", err))

		return
	}

	payload, err := metrics.Encode(report.Metrics)
	if err != nil {
		s.logger.Error("Failed to encode metric record",
			slog.Int("round", ins.Round),
			slog.Any("error", err))

		return
	}

	res := experiment.EvaluateResult{
		ExperimentID: s.cfg.ExperimentID,
		Round:        ins.Round,
		NodeID:       s.cfg.ID,
		NumSamples:   report.NumSamples,
		Loss:         report.Loss,
		Metrics:      payload,
	}
	topic := fmt.Sprintf(mqtt.EvaluateResultsTopic, s.cfg.ExperimentID)
	if err := s.pubsub.Publish(ctx, topic, res); err != nil {
		s.logger.Error("Failed to publish evaluate result",
			slog.Int("round", ins.Round),
			slog.Any("error", err))

		return
	}

	s.logger.Info("Reported evaluate result",
		slog.Int("round", ins.Round),
		slog.Float64("loss", report.Loss))
}

func (s *Service) handleFit(topic string, msg map[string]any) error {
	var ins experiment.FitIns
	if err := remarshal(msg, &ins); err != nil {
		return fmt.Errorf("malformed fit instructions on %s: %w", topic, err)
	}

	select {
	case s.fitCh <- ins:
	default:
		s.logger.Warn("Dropping fit instructions, queue full", slog.Int("round", ins.Round))
	}

	return nil
}

func (s *Service) handleEvaluate(topic string, msg map[string]any) error {
	var ins experiment.EvaluateIns
	if err := remarshal(msg, &ins); err != nil {
		return fmt.Errorf("malformed evaluate instructions on %s: %w", topic, err)
	}

	select {
	case s.evalCh <- ins:
	default:
		s.logger.Warn("Dropping evaluate instructions, queue full", slog.Int("round", ins.Round))
	}

	return nil
}

func remarshal(msg map[string]any, v any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}
