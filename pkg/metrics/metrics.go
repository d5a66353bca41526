// Package metrics holds the per-round metric records exchanged between data
// nodes and the coordinator, and the reductions that collapse them across
// candidate sub-models and across nodes.
package metrics

import "fmt"

type Partition string

const (
	Train Partition = "train"
	Val   Partition = "val"
	Test  Partition = "test"
)

type Kind string

const (
	KindPartition    Kind = "partition"
	KindClientRound  Kind = "client_round"
	KindCandidateSet Kind = "candidate_set"
)

// Record is the tagged union of metric shapes a node can report for a round.
// It is sealed: only types in this package implement it.
type Record interface {
	Kind() Kind
	// ValLoss is the validation loss the checkpoint tracker keys on.
	ValLoss() float64
	// Samples is the total validation sample count, used as the averaging
	// weight when combining nodes.
	Samples() int

	sealed()
}

// PartitionMetrics is the leaf record: one partition of one model on one node.
// Treated as immutable once constructed.
type PartitionMetrics struct {
	Partition Partition `json:"partition"`
	Loss      float64   `json:"loss"`
	R2        float64   `json:"r2"`
	Epoch     int       `json:"epoch"`
	Samples   int       `json:"samples"`
}

// Fields renders the record into named scalars for the tracking service.
func (m PartitionMetrics) Fields() map[string]float64 {
	return map[string]float64{
		fmt.Sprintf("%s_loss", m.Partition): m.Loss,
		fmt.Sprintf("%s_r2", m.Partition):   m.R2,
	}
}

// ClientRoundMetrics is one node's per-round bundle. Val is always present;
// Test is set only on the final evaluation round.
type ClientRoundMetrics struct {
	Train PartitionMetrics  `json:"train"`
	Val   PartitionMetrics  `json:"val"`
	Test  *PartitionMetrics `json:"test,omitempty"`
	Epoch int               `json:"epoch"`
}

func (m ClientRoundMetrics) Kind() Kind { return KindClientRound }

func (m ClientRoundMetrics) ValLoss() float64 { return m.Val.Loss }

func (m ClientRoundMetrics) Samples() int { return m.Val.Samples }

func (m ClientRoundMetrics) sealed() {}

// Fields flattens the bundle for logging and for the round result mapping.
func (m ClientRoundMetrics) Fields() map[string]float64 {
	out := m.Train.Fields()
	for k, v := range m.Val.Fields() {
		out[k] = v
	}
	if m.Test != nil {
		for k, v := range m.Test.Fields() {
			out[k] = v
		}
	}

	return out
}

func (m ClientRoundMetrics) String() string {
	s := fmt.Sprintf("train_loss: %.4f\ttrain_r2: %.4f\tval_loss: %.4f\tval_r2: %.4f",
		m.Train.Loss, m.Train.R2, m.Val.Loss, m.Val.R2)
	if m.Test != nil {
		s += fmt.Sprintf("\ttest_loss: %.4f\ttest_r2: %.4f", m.Test.Loss, m.Test.R2)
	}

	return s
}

// CandidateSetMetrics is one node's per-round bundle for the multi-model
// training family: each partition carries one entry per candidate sub-model,
// in a shared candidate ordering. Test, when present, has the same length as
// Train and Val.
type CandidateSetMetrics struct {
	Train []PartitionMetrics `json:"train"`
	Val   []PartitionMetrics `json:"val"`
	Test  []PartitionMetrics `json:"test,omitempty"`
	Epoch int                `json:"epoch"`
}

func (m CandidateSetMetrics) Kind() Kind { return KindCandidateSet }

func (m CandidateSetMetrics) ValLoss() float64 {
	reduced, err := Reduce(m.Val, Mean)
	if err != nil {
		return 0
	}

	return reduced.Loss
}

func (m CandidateSetMetrics) Samples() int {
	if len(m.Val) == 0 {
		return 0
	}

	return m.Val[0].Samples
}

func (m CandidateSetMetrics) sealed() {}

// FederatedRoundMetrics is the aggregate of all nodes' records for one round.
// It is produced by the round evaluator and consumed immediately.
type FederatedRoundMetrics struct {
	Clients []Record
	Epoch   int
}
