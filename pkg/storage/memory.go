package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/errors"
)

type memoryExperiments struct {
	sync.Mutex

	data map[string]experiment.Experiment
}

func NewMemoryExperiments() ExperimentRepository {
	return &memoryExperiments{
		data: make(map[string]experiment.Experiment),
	}
}

func (s *memoryExperiments) Create(_ context.Context, exp experiment.Experiment) error {
	if exp.ID == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[exp.ID]; ok {
		return errors.ErrEntityExists
	}
	s.data[exp.ID] = exp

	return nil
}

func (s *memoryExperiments) Get(_ context.Context, id string) (experiment.Experiment, error) {
	if id == "" {
		return experiment.Experiment{}, errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if exp, ok := s.data[id]; ok {
		return exp, nil
	}

	return experiment.Experiment{}, errors.ErrNotFound
}

func (s *memoryExperiments) Update(_ context.Context, exp experiment.Experiment) error {
	if exp.ID == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if _, ok := s.data[exp.ID]; !ok {
		return errors.ErrNotFound
	}
	s.data[exp.ID] = exp

	return nil
}

func (s *memoryExperiments) List(_ context.Context, offset, limit uint64) (experiment.Page, error) {
	s.Lock()
	defer s.Unlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := uint64(len(ids))
	page := experiment.Page{Offset: offset, Limit: limit, Total: total}
	if offset >= total {
		return page, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}
	for _, id := range ids[offset:end] {
		page.Experiments = append(page.Experiments, s.data[id])
	}

	return page, nil
}

func (s *memoryExperiments) Delete(_ context.Context, id string) error {
	if id == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	delete(s.data, id)

	return nil
}

type memoryRuns struct {
	sync.Mutex

	data map[string]experiment.Run
}

func NewMemoryRuns() RunRepository {
	return &memoryRuns{
		data: make(map[string]experiment.Run),
	}
}

func (s *memoryRuns) Save(_ context.Context, run experiment.Run) error {
	if run.ExperimentID == "" {
		return errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	s.data[run.ExperimentID] = run

	return nil
}

func (s *memoryRuns) Get(_ context.Context, experimentID string) (experiment.Run, error) {
	if experimentID == "" {
		return experiment.Run{}, errors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	if run, ok := s.data[experimentID]; ok {
		return run, nil
	}

	return experiment.Run{}, errors.ErrNotFound
}
