// Package experiment holds the domain types for federated GWAS experiments:
// the experiment definition and the state of one training run.
package experiment

import "time"

type State uint8

const (
	Created State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Experiment describes one federated study: which nodes hold data, how many
// rounds to run, and how node results are collected.
type Experiment struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Phenotype     string        `json:"phenotype"`
	Nodes         []string      `json:"nodes"`
	Rounds        int           `json:"rounds"`
	EpochsInRound int           `json:"epochs_in_round"`
	MinNodes      int           `json:"min_nodes"`
	RoundTimeout  time.Duration `json:"round_timeout"`
	SnapshotDir   string        `json:"snapshot_dir,omitempty"`
	TrackingURL   string        `json:"tracking_url,omitempty"`
	State         State         `json:"state"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Run is the evolving state of one training run of an experiment.
type Run struct {
	ExperimentID string    `json:"experiment_id"`
	Round        int       `json:"round"`
	History      []float64 `json:"history"`
	BestCol      int       `json:"best_col"`
	State        State     `json:"state"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
}

type Page struct {
	Offset      uint64       `json:"offset"`
	Limit       uint64       `json:"limit"`
	Total       uint64       `json:"total"`
	Experiments []Experiment `json:"experiments"`
}
