package experiment

import "github.com/genofl/genofl/pkg/fedavg"

// Wire messages exchanged between the coordinator and data nodes. Parameter
// layers travel as JSON; metric records travel as opaque CBOR blobs
// (base64-coded by JSON) decoded only by the round evaluator.

// FitIns instructs nodes to train locally for one round. Empty layers on the
// first round tell nodes to initialize parameters themselves.
type FitIns struct {
	ExperimentID string            `json:"experiment_id"`
	Round        int               `json:"round"`
	Layers       fedavg.Parameters `json:"layers,omitempty"`
	Config       map[string]any    `json:"config,omitempty"`
}

// EvaluateIns instructs nodes to evaluate the given parameters.
type EvaluateIns struct {
	ExperimentID string            `json:"experiment_id"`
	Round        int               `json:"round"`
	Layers       fedavg.Parameters `json:"layers"`
	Config       map[string]any    `json:"config,omitempty"`
}

// FitResult is a node's parameter update for one round.
type FitResult struct {
	ExperimentID string            `json:"experiment_id"`
	Round        int               `json:"round"`
	NodeID       string            `json:"node_id"`
	NumSamples   int               `json:"num_samples"`
	Layers       fedavg.Parameters `json:"layers"`
}

// EvaluateResult is a node's evaluation report for one round.
type EvaluateResult struct {
	ExperimentID string  `json:"experiment_id"`
	Round        int     `json:"round"`
	NodeID       string  `json:"node_id"`
	NumSamples   int     `json:"num_samples"`
	Loss         float64 `json:"loss"`
	Metrics      []byte  `json:"metrics"`
}
