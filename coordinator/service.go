// Package coordinator is the central aggregation server: it owns experiment
// state, drives federated training rounds over MQTT, and serves the HTTP API.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/checkpoint"
	"github.com/genofl/genofl/pkg/errors"
	"github.com/genofl/genofl/pkg/mqtt"
	"github.com/genofl/genofl/pkg/storage"
)

type Service interface {
	CreateExperiment(ctx context.Context, exp experiment.Experiment) (experiment.Experiment, error)
	GetExperiment(ctx context.Context, id string) (experiment.Experiment, error)
	ListExperiments(ctx context.Context, offset, limit uint64) (experiment.Page, error)
	DeleteExperiment(ctx context.Context, id string) error
	// StartExperiment launches the run loop for an experiment. The loop
	// itself is sequential; only its launch is asynchronous.
	StartExperiment(ctx context.Context, id string) error
	GetRun(ctx context.Context, id string) (experiment.Run, error)
	// ExportModel copies the experiment's best snapshot to dst.
	ExportModel(ctx context.Context, id, dst string) error
}

type service struct {
	experimentsDB storage.ExperimentRepository
	runsDB        storage.RunRepository
	pubsub        mqtt.PubSub
	snapshotRoot  string
	logger        *slog.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

func NewService(experimentsDB storage.ExperimentRepository, runsDB storage.RunRepository, pubsub mqtt.PubSub, snapshotRoot string, logger *slog.Logger) Service {
	return &service{
		experimentsDB: experimentsDB,
		runsDB:        runsDB,
		pubsub:        pubsub,
		snapshotRoot:  snapshotRoot,
		logger:        logger,
		running:       make(map[string]context.CancelFunc),
	}
}

func (svc *service) CreateExperiment(ctx context.Context, exp experiment.Experiment) (experiment.Experiment, error) {
	if exp.Name == "" || len(exp.Nodes) == 0 || exp.Rounds <= 0 {
		return experiment.Experiment{}, errors.ErrInvalidData
	}

	exp.ID = uuid.NewString()
	exp.State = experiment.Created
	exp.CreatedAt = time.Now()
	exp.UpdatedAt = exp.CreatedAt
	if exp.MinNodes <= 0 || exp.MinNodes > len(exp.Nodes) {
		exp.MinNodes = len(exp.Nodes)
	}
	if exp.RoundTimeout <= 0 {
		exp.RoundTimeout = 5 * time.Minute
	}
	if exp.SnapshotDir == "" {
		exp.SnapshotDir = filepath.Join(svc.snapshotRoot, exp.ID)
	}

	if err := svc.experimentsDB.Create(ctx, exp); err != nil {
		return experiment.Experiment{}, err
	}

	return exp, nil
}

func (svc *service) GetExperiment(ctx context.Context, id string) (experiment.Experiment, error) {
	return svc.experimentsDB.Get(ctx, id)
}

func (svc *service) ListExperiments(ctx context.Context, offset, limit uint64) (experiment.Page, error) {
	return svc.experimentsDB.List(ctx, offset, limit)
}

func (svc *service) DeleteExperiment(ctx context.Context, id string) error {
	exp, err := svc.experimentsDB.Get(ctx, id)
	if err != nil {
		return err
	}
	if exp.State == experiment.Running {
		return errors.ErrNotRunnable
	}

	return svc.experimentsDB.Delete(ctx, id)
}

func (svc *service) StartExperiment(ctx context.Context, id string) error {
	exp, err := svc.experimentsDB.Get(ctx, id)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	if _, ok := svc.running[id]; ok {
		svc.mu.Unlock()

		return errors.ErrNotRunnable
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	svc.running[id] = cancel
	svc.mu.Unlock()

	exp.State = experiment.Running
	exp.UpdatedAt = time.Now()
	if err := svc.experimentsDB.Update(ctx, exp); err != nil {
		svc.stopTracking(id)

		return err
	}

	runner := newRunner(exp, svc.runsDB, svc.pubsub, svc.logger)
	go func() {
		defer svc.stopTracking(id)

		state := experiment.Completed
		if err := runner.Run(runCtx); err != nil {
			svc.logger.Error("Experiment run failed",
				slog.String("experiment_id", id),
				slog.Any("error", err))
			state = experiment.Failed
		}

		exp, err := svc.experimentsDB.Get(runCtx, id)
		if err != nil {
			return
		}
		exp.State = state
		exp.UpdatedAt = time.Now()
		if err := svc.experimentsDB.Update(runCtx, exp); err != nil {
			svc.logger.Error("Failed to persist experiment state",
				slog.String("experiment_id", id),
				slog.Any("error", err))
		}
	}()

	return nil
}

func (svc *service) stopTracking(id string) {
	svc.mu.Lock()
	if cancel, ok := svc.running[id]; ok {
		cancel()
		delete(svc.running, id)
	}
	svc.mu.Unlock()
}

func (svc *service) GetRun(ctx context.Context, id string) (experiment.Run, error) {
	return svc.runsDB.Get(ctx, id)
}

func (svc *service) ExportModel(ctx context.Context, id, dst string) error {
	exp, err := svc.experimentsDB.Get(ctx, id)
	if err != nil {
		return err
	}

	tracker, err := checkpoint.NewTracker(exp.SnapshotDir, svc.logger)
	if err != nil {
		return fmt.Errorf("failed to open snapshot dir: %w", err)
	}

	return tracker.Export(dst)
}
