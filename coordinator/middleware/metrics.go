package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/genofl/genofl/coordinator"
	"github.com/genofl/genofl/experiment"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) CreateExperiment(ctx context.Context, exp experiment.Experiment) (experiment.Experiment, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "create-experiment").Add(1)
		mm.latency.With("method", "create-experiment").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CreateExperiment(ctx, exp)
}

func (mm *metricsMiddleware) GetExperiment(ctx context.Context, id string) (experiment.Experiment, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-experiment").Add(1)
		mm.latency.With("method", "get-experiment").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetExperiment(ctx, id)
}

func (mm *metricsMiddleware) ListExperiments(ctx context.Context, offset, limit uint64) (experiment.Page, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-experiments").Add(1)
		mm.latency.With("method", "list-experiments").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListExperiments(ctx, offset, limit)
}

func (mm *metricsMiddleware) DeleteExperiment(ctx context.Context, id string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "delete-experiment").Add(1)
		mm.latency.With("method", "delete-experiment").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.DeleteExperiment(ctx, id)
}

func (mm *metricsMiddleware) StartExperiment(ctx context.Context, id string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "start-experiment").Add(1)
		mm.latency.With("method", "start-experiment").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.StartExperiment(ctx, id)
}

func (mm *metricsMiddleware) GetRun(ctx context.Context, id string) (experiment.Run, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-run").Add(1)
		mm.latency.With("method", "get-run").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetRun(ctx, id)
}

func (mm *metricsMiddleware) ExportModel(ctx context.Context, id, dst string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "export-model").Add(1)
		mm.latency.With("method", "export-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ExportModel(ctx, id, dst)
}
