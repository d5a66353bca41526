package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/genofl/genofl/coordinator"
	"github.com/genofl/genofl/experiment"
)

var _ coordinator.Service = (*tracingMiddleware)(nil)

type tracingMiddleware struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracingMiddleware{
		tracer: tracer,
		svc:    svc,
	}
}

func (tm *tracingMiddleware) CreateExperiment(ctx context.Context, exp experiment.Experiment) (experiment.Experiment, error) {
	ctx, span := tm.tracer.Start(ctx, "create-experiment", trace.WithAttributes(
		attribute.String("name", exp.Name),
		attribute.String("phenotype", exp.Phenotype),
	))
	defer span.End()

	return tm.svc.CreateExperiment(ctx, exp)
}

func (tm *tracingMiddleware) GetExperiment(ctx context.Context, id string) (experiment.Experiment, error) {
	ctx, span := tm.tracer.Start(ctx, "get-experiment", trace.WithAttributes(
		attribute.String("experiment_id", id),
	))
	defer span.End()

	return tm.svc.GetExperiment(ctx, id)
}

func (tm *tracingMiddleware) ListExperiments(ctx context.Context, offset, limit uint64) (experiment.Page, error) {
	ctx, span := tm.tracer.Start(ctx, "list-experiments", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListExperiments(ctx, offset, limit)
}

func (tm *tracingMiddleware) DeleteExperiment(ctx context.Context, id string) error {
	ctx, span := tm.tracer.Start(ctx, "delete-experiment", trace.WithAttributes(
		attribute.String("experiment_id", id),
	))
	defer span.End()

	return tm.svc.DeleteExperiment(ctx, id)
}

func (tm *tracingMiddleware) StartExperiment(ctx context.Context, id string) error {
	ctx, span := tm.tracer.Start(ctx, "start-experiment", trace.WithAttributes(
		attribute.String("experiment_id", id),
	))
	defer span.End()

	return tm.svc.StartExperiment(ctx, id)
}

func (tm *tracingMiddleware) GetRun(ctx context.Context, id string) (experiment.Run, error) {
	ctx, span := tm.tracer.Start(ctx, "get-run", trace.WithAttributes(
		attribute.String("experiment_id", id),
	))
	defer span.End()

	return tm.svc.GetRun(ctx, id)
}

func (tm *tracingMiddleware) ExportModel(ctx context.Context, id, dst string) error {
	ctx, span := tm.tracer.Start(ctx, "export-model", trace.WithAttributes(
		attribute.String("experiment_id", id),
		attribute.String("destination", dst),
	))
	defer span.End()

	return tm.svc.ExportModel(ctx, id, dst)
}
