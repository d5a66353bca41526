package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/genofl/genofl/coordinator"
	"github.com/genofl/genofl/experiment"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) CreateExperiment(ctx context.Context, exp experiment.Experiment) (resp experiment.Experiment, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("experiment",
				slog.String("name", exp.Name),
				slog.String("phenotype", exp.Phenotype),
				slog.Int("nodes", len(exp.Nodes)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Create experiment failed", args...)

			return
		}
		lm.logger.Info("Create experiment completed successfully", args...)
	}(time.Now())

	return lm.svc.CreateExperiment(ctx, exp)
}

func (lm *loggingMiddleware) GetExperiment(ctx context.Context, id string) (resp experiment.Experiment, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get experiment failed", args...)

			return
		}
		lm.logger.Info("Get experiment completed successfully", args...)
	}(time.Now())

	return lm.svc.GetExperiment(ctx, id)
}

func (lm *loggingMiddleware) ListExperiments(ctx context.Context, offset, limit uint64) (resp experiment.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List experiments failed", args...)

			return
		}
		lm.logger.Info("List experiments completed successfully", args...)
	}(time.Now())

	return lm.svc.ListExperiments(ctx, offset, limit)
}

func (lm *loggingMiddleware) DeleteExperiment(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Delete experiment failed", args...)

			return
		}
		lm.logger.Info("Delete experiment completed successfully", args...)
	}(time.Now())

	return lm.svc.DeleteExperiment(ctx, id)
}

func (lm *loggingMiddleware) StartExperiment(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Start experiment failed", args...)

			return
		}
		lm.logger.Info("Start experiment completed successfully", args...)
	}(time.Now())

	return lm.svc.StartExperiment(ctx, id)
}

func (lm *loggingMiddleware) GetRun(ctx context.Context, id string) (resp experiment.Run, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", id),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get run failed", args...)

			return
		}
		lm.logger.Info("Get run completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRun(ctx, id)
}

func (lm *loggingMiddleware) ExportModel(ctx context.Context, id, dst string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("experiment_id", id),
			slog.String("destination", dst),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Export model failed", args...)

			return
		}
		lm.logger.Info("Export model completed successfully", args...)
	}(time.Now())

	return lm.svc.ExportModel(ctx, id, dst)
}
