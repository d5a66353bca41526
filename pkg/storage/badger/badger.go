// Package badger is the durable coordinator store: experiment definitions and
// run state survive coordinator restarts.
package badger

import (
	"context"
	"encoding/json"
	stderr "errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/errors"
	"github.com/genofl/genofl/pkg/storage"
)

const (
	experimentPrefix = "experiment/"
	runPrefix        = "run/"
)

type DB struct {
	db *badger.DB
}

func Open(path string) (*DB, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	return &DB{db: db}, nil
}

// OpenInMemory opens a non-durable store, for tests and throwaway runs.
func OpenInMemory() (*DB, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger store: %w", err)
	}

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Experiments() storage.ExperimentRepository {
	return &experimentRepo{db: d.db}
}

func (d *DB) Runs() storage.RunRepository {
	return &runRepo{db: d.db}
}

type experimentRepo struct {
	db *badger.DB
}

func (r *experimentRepo) Create(_ context.Context, exp experiment.Experiment) error {
	if exp.ID == "" {
		return errors.ErrEmptyKey
	}

	key := []byte(experimentPrefix + exp.ID)

	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return errors.ErrEntityExists
		}

		data, err := json.Marshal(exp)
		if err != nil {
			return fmt.Errorf("failed to marshal experiment: %w", err)
		}

		return txn.Set(key, data)
	})
}

func (r *experimentRepo) Get(_ context.Context, id string) (experiment.Experiment, error) {
	if id == "" {
		return experiment.Experiment{}, errors.ErrEmptyKey
	}

	var exp experiment.Experiment
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(experimentPrefix + id))
		if err != nil {
			if stderr.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrNotFound
			}

			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &exp)
		})
	})

	return exp, err
}

func (r *experimentRepo) Update(ctx context.Context, exp experiment.Experiment) error {
	if exp.ID == "" {
		return errors.ErrEmptyKey
	}

	if _, err := r.Get(ctx, exp.ID); err != nil {
		return err
	}

	data, err := json.Marshal(exp)
	if err != nil {
		return fmt.Errorf("failed to marshal experiment: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(experimentPrefix+exp.ID), data)
	})
}

func (r *experimentRepo) List(_ context.Context, offset, limit uint64) (experiment.Page, error) {
	page := experiment.Page{Offset: offset, Limit: limit}

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(experimentPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		var idx uint64
		for it.Rewind(); it.Valid(); it.Next() {
			idx++
			page.Total++
			if idx <= offset || uint64(len(page.Experiments)) >= limit {
				continue
			}

			var exp experiment.Experiment
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &exp)
			}); err != nil {
				return err
			}
			page.Experiments = append(page.Experiments, exp)
		}

		return nil
	})

	return page, err
}

func (r *experimentRepo) Delete(_ context.Context, id string) error {
	if id == "" {
		return errors.ErrEmptyKey
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(experimentPrefix + id))
	})
}

type runRepo struct {
	db *badger.DB
}

func (r *runRepo) Save(_ context.Context, run experiment.Run) error {
	if run.ExperimentID == "" {
		return errors.ErrEmptyKey
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runPrefix+run.ExperimentID), data)
	})
}

func (r *runRepo) Get(_ context.Context, experimentID string) (experiment.Run, error) {
	if experimentID == "" {
		return experiment.Run{}, errors.ErrEmptyKey
	}

	var run experiment.Run
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runPrefix + experimentID))
		if err != nil {
			if stderr.Is(err, badger.ErrKeyNotFound) {
				return errors.ErrNotFound
			}

			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})

	return run, err
}
