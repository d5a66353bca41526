// Package fedavg implements the base federated-averaging algorithm: combining
// node parameter updates by sample-count-weighted averaging and building
// per-node evaluation instructions. Parameter arithmetic lives here and only
// here.
package fedavg

import (
	"errors"
	"fmt"
)

var (
	ErrNoResults     = errors.New("no node results to aggregate")
	ErrLayerMismatch = errors.New("node updates have mismatched layer shapes")
)

// Layer is one named parameter array of the model.
type Layer struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Parameters is the model's full parameter set, in a fixed layer order.
type Parameters []Layer

func (p Parameters) Empty() bool { return len(p) == 0 }

// Clone returns a deep copy, so callers can mutate without aliasing.
func (p Parameters) Clone() Parameters {
	out := make(Parameters, len(p))
	for i, l := range p {
		vals := make([]float64, len(l.Values))
		copy(vals, l.Values)
		out[i] = Layer{Name: l.Name, Values: vals}
	}

	return out
}

// FitResult is one node's contribution to a fit round.
type FitResult struct {
	NodeID     string
	Params     Parameters
	NumSamples int
}

// EvalResult is one node's contribution to an evaluate round. Payload is the
// node's serialized metric record, opaque at this layer.
type EvalResult struct {
	NodeID     string
	Loss       float64
	NumSamples int
	Payload    []byte
}

// EvaluateIns is one evaluation instruction for one node.
type EvaluateIns struct {
	NodeID string
	Params Parameters
	Config map[string]any
}

// ConfigFn supplies the per-round evaluate configuration embedded in every
// instruction.
type ConfigFn func(round int) map[string]any

// Algorithm is the base aggregation contract a strategy wraps.
type Algorithm interface {
	ConfigureEvaluate(round int, params Parameters, nodes []string) []EvaluateIns
	AggregateFit(round int, results []FitResult, failures []error) (Parameters, error)
	AggregateEvaluate(round int, results []EvalResult, failures []error) (*float64, error)
}

type FedAvg struct {
	configFn ConfigFn
}

func New(configFn ConfigFn) *FedAvg {
	if configFn == nil {
		configFn = func(round int) map[string]any {
			return map[string]any{"current_round": round}
		}
	}

	return &FedAvg{configFn: configFn}
}

func (f *FedAvg) ConfigureEvaluate(round int, params Parameters, nodes []string) []EvaluateIns {
	ins := make([]EvaluateIns, 0, len(nodes))
	for _, n := range nodes {
		ins = append(ins, EvaluateIns{
			NodeID: n,
			Params: params.Clone(),
			Config: f.configFn(round),
		})
	}

	return ins
}

// AggregateFit combines node updates into new global parameters, weighting
// each node by its training sample count. An empty result set yields empty
// parameters and no error: the round is a defined no-op.
func (f *FedAvg) AggregateFit(_ int, results []FitResult, _ []error) (Parameters, error) {
	if len(results) == 0 {
		return nil, nil
	}

	var total int64
	for _, r := range results {
		total += int64(r.NumSamples)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: zero total samples", ErrNoResults)
	}

	agg := results[0].Params.Clone()
	for i := range agg {
		for j := range agg[i].Values {
			agg[i].Values[j] = 0
		}
	}

	for _, r := range results {
		if len(r.Params) != len(agg) {
			return nil, fmt.Errorf("%w: got %d layers, want %d", ErrLayerMismatch, len(r.Params), len(agg))
		}
		w := float64(r.NumSamples) / float64(total)
		for i, l := range r.Params {
			if len(l.Values) != len(agg[i].Values) {
				return nil, fmt.Errorf("%w: layer %q has %d values, want %d", ErrLayerMismatch, l.Name, len(l.Values), len(agg[i].Values))
			}
			for j, v := range l.Values {
				agg[i].Values[j] += v * w
			}
		}
	}

	return agg, nil
}

// AggregateEvaluate keeps the algorithm's own bookkeeping: the weighted mean
// of the node-reported losses. nil means no result.
func (f *FedAvg) AggregateEvaluate(_ int, results []EvalResult, _ []error) (*float64, error) {
	if len(results) == 0 {
		return nil, nil
	}

	var total int64
	var sum float64
	for _, r := range results {
		total += int64(r.NumSamples)
		sum += r.Loss * float64(r.NumSamples)
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: zero total samples", ErrNoResults)
	}

	loss := sum / float64(total)

	return &loss, nil
}
