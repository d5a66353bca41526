package storage

import (
	"context"

	"github.com/genofl/genofl/experiment"
)

// ExperimentRepository stores experiment definitions.
type ExperimentRepository interface {
	Create(ctx context.Context, exp experiment.Experiment) error
	Get(ctx context.Context, id string) (experiment.Experiment, error)
	Update(ctx context.Context, exp experiment.Experiment) error
	List(ctx context.Context, offset, limit uint64) (experiment.Page, error)
	Delete(ctx context.Context, id string) error
}

// RunRepository stores the evolving run state of experiments, one run per
// experiment.
type RunRepository interface {
	Save(ctx context.Context, run experiment.Run) error
	Get(ctx context.Context, experimentID string) (experiment.Run, error)
}
