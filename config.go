// Package genofl holds the experiment file format: a TOML description of a
// federated study that the CLI submits to the coordinator.
package genofl

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/genofl/genofl/experiment"
)

type ExperimentFile struct {
	Experiment ExperimentConfig `toml:"experiment"`
	Collection CollectionConfig `toml:"collection"`
	Tracking   TrackingConfig   `toml:"tracking"`
}

type ExperimentConfig struct {
	Name          string   `toml:"name"`
	Description   string   `toml:"description"`
	Phenotype     string   `toml:"phenotype"`
	Nodes         []string `toml:"nodes"`
	Rounds        int      `toml:"rounds"`
	EpochsInRound int      `toml:"epochs_in_round"`
}

type CollectionConfig struct {
	MinNodes     int    `toml:"min_nodes"`
	RoundTimeout string `toml:"round_timeout"`
}

type TrackingConfig struct {
	URL string `toml:"url"`
}

func LoadExperimentFile(path string) (*ExperimentFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading experiment file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing experiment file: %w", err)
	}

	var cfg ExperimentFile
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling experiment file: %w", err)
	}

	return &cfg, nil
}

// ToExperiment converts the file format into the coordinator's experiment
// type.
func (f *ExperimentFile) ToExperiment() (experiment.Experiment, error) {
	var timeout time.Duration
	if f.Collection.RoundTimeout != "" {
		var err error
		timeout, err = time.ParseDuration(f.Collection.RoundTimeout)
		if err != nil {
			return experiment.Experiment{}, fmt.Errorf("invalid round_timeout: %w", err)
		}
	}

	return experiment.Experiment{
		Name:          f.Experiment.Name,
		Description:   f.Experiment.Description,
		Phenotype:     f.Experiment.Phenotype,
		Nodes:         f.Experiment.Nodes,
		Rounds:        f.Experiment.Rounds,
		EpochsInRound: f.Experiment.EpochsInRound,
		MinNodes:      f.Collection.MinNodes,
		RoundTimeout:  timeout,
		TrackingURL:   f.Tracking.URL,
	}, nil
}
