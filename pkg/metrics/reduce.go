package metrics

import "fmt"

// Reduction names how a sequence of metric records is collapsed into one.
type Reduction string

const (
	// Mean is a sample-count-weighted average of loss and R2.
	Mean Reduction = "mean"
	// LassoNetBest keeps the single candidate sub-model with the highest
	// validation R2 instead of averaging.
	LassoNetBest Reduction = "lassonet_best"
)

func (r Reduction) validate() error {
	switch r {
	case Mean, LassoNetBest:
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidReduction, r)
	}
}

// Reduce collapses same-partition records into one. Only Mean applies at this
// level: best-of selection needs the candidate dimension and is rejected with
// ErrInvalidShape. A singleton input is returned unchanged.
func Reduce(records []PartitionMetrics, reduction Reduction) (PartitionMetrics, error) {
	if err := reduction.validate(); err != nil {
		return PartitionMetrics{}, err
	}
	if reduction == LassoNetBest {
		return PartitionMetrics{}, fmt.Errorf("%w: lassonet_best on flat partition records", ErrInvalidShape)
	}
	if len(records) == 0 {
		return PartitionMetrics{}, ErrEmptyInput
	}
	if len(records) == 1 {
		return records[0], nil
	}

	return weightedMean(records, records[0].Epoch)
}

func weightedMean(records []PartitionMetrics, epoch int) (PartitionMetrics, error) {
	var samples int
	for _, m := range records {
		samples += m.Samples
	}
	if samples == 0 {
		return PartitionMetrics{}, fmt.Errorf("%w: zero total sample count", ErrInvalidShape)
	}

	var loss, r2 float64
	for _, m := range records {
		w := float64(m.Samples) / float64(samples)
		loss += m.Loss * w
		r2 += m.R2 * w
	}

	return PartitionMetrics{
		Partition: records[0].Partition,
		Loss:      loss,
		R2:        r2,
		Epoch:     epoch,
		Samples:   samples,
	}, nil
}

// Reduce collapses the candidate dimension. Mean averages every candidate
// sub-model per partition; LassoNetBest returns the records of the candidate
// with the highest validation R2 unmodified, together with its index
// (ties go to the lowest index). The returned index is -1 for Mean.
func (m CandidateSetMetrics) Reduce(reduction Reduction) (ClientRoundMetrics, int, error) {
	if err := reduction.validate(); err != nil {
		return ClientRoundMetrics{}, -1, err
	}
	if len(m.Val) == 0 || len(m.Train) == 0 {
		return ClientRoundMetrics{}, -1, ErrEmptyInput
	}
	if len(m.Train) != len(m.Val) || (len(m.Test) > 0 && len(m.Test) != len(m.Val)) {
		return ClientRoundMetrics{}, -1, fmt.Errorf("%w: candidate sequences have unequal lengths", ErrInvalidShape)
	}

	switch reduction {
	case Mean:
		train, err := weightedMean(m.Train, m.Epoch)
		if err != nil {
			return ClientRoundMetrics{}, -1, err
		}
		val, err := weightedMean(m.Val, m.Epoch)
		if err != nil {
			return ClientRoundMetrics{}, -1, err
		}
		out := ClientRoundMetrics{Train: train, Val: val, Epoch: m.Epoch}
		if len(m.Test) > 0 {
			test, err := weightedMean(m.Test, m.Epoch)
			if err != nil {
				return ClientRoundMetrics{}, -1, err
			}
			out.Test = &test
		}

		return out, -1, nil
	case LassoNetBest:
		best := 0
		for i, vm := range m.Val {
			if vm.R2 > m.Val[best].R2 {
				best = i
			}
		}
		out := ClientRoundMetrics{
			Train: m.Train[best],
			Val:   m.Val[best],
			Epoch: m.Epoch,
		}
		if len(m.Test) > 0 {
			test := m.Test[best]
			out.Test = &test
		}

		return out, best, nil
	default:
		return ClientRoundMetrics{}, -1, fmt.Errorf("%w: got %q", ErrInvalidReduction, reduction)
	}
}

// Reduce combines the per-node records of one round. Mean collapses each
// node's candidate dimension first and then weighted-means nodes into one
// ClientRoundMetrics. LassoNetBest requires every node to be candidate-shaped
// and weighted-means each candidate column across nodes, yielding an
// aggregated CandidateSetMetrics from which the caller selects the best
// column; this keeps a single well-defined best index across nodes.
func (f FederatedRoundMetrics) Reduce(reduction Reduction) (Record, error) {
	if err := reduction.validate(); err != nil {
		return nil, err
	}
	if len(f.Clients) == 0 {
		return nil, ErrEmptyInput
	}

	switch reduction {
	case Mean:
		train := make([]PartitionMetrics, 0, len(f.Clients))
		val := make([]PartitionMetrics, 0, len(f.Clients))
		test := make([]PartitionMetrics, 0, len(f.Clients))
		for _, c := range f.Clients {
			collapsed, err := collapseClient(c)
			if err != nil {
				return nil, err
			}
			train = append(train, collapsed.Train)
			val = append(val, collapsed.Val)
			if collapsed.Test != nil {
				test = append(test, *collapsed.Test)
			}
		}

		trainAgg, err := weightedMean(train, f.Epoch)
		if err != nil {
			return nil, err
		}
		valAgg, err := weightedMean(val, f.Epoch)
		if err != nil {
			return nil, err
		}
		out := ClientRoundMetrics{Train: trainAgg, Val: valAgg, Epoch: f.Epoch}
		if len(test) == len(f.Clients) {
			t, err := weightedMean(test, f.Epoch)
			if err != nil {
				return nil, err
			}
			out.Test = &t
		}

		return out, nil
	case LassoNetBest:
		sets := make([]CandidateSetMetrics, 0, len(f.Clients))
		for _, c := range f.Clients {
			set, ok := c.(CandidateSetMetrics)
			if !ok {
				return nil, fmt.Errorf("%w: lassonet_best needs candidate-shaped records from every node", ErrInvalidShape)
			}
			sets = append(sets, set)
		}

		cols := len(sets[0].Val)
		hasTest := len(sets[0].Test) > 0
		out := CandidateSetMetrics{Epoch: f.Epoch}
		for _, s := range sets {
			if len(s.Val) != cols || len(s.Train) != cols {
				return nil, fmt.Errorf("%w: nodes report different candidate counts", ErrInvalidShape)
			}
			if (len(s.Test) > 0) != hasTest || (hasTest && len(s.Test) != cols) {
				return nil, fmt.Errorf("%w: nodes disagree on test metric presence", ErrInvalidShape)
			}
		}

		for col := 0; col < cols; col++ {
			train := make([]PartitionMetrics, len(sets))
			val := make([]PartitionMetrics, len(sets))
			for i, s := range sets {
				train[i] = s.Train[col]
				val[i] = s.Val[col]
			}
			trainAgg, err := weightedMean(train, f.Epoch)
			if err != nil {
				return nil, err
			}
			valAgg, err := weightedMean(val, f.Epoch)
			if err != nil {
				return nil, err
			}
			out.Train = append(out.Train, trainAgg)
			out.Val = append(out.Val, valAgg)

			if hasTest {
				test := make([]PartitionMetrics, len(sets))
				for i, s := range sets {
					test[i] = s.Test[col]
				}
				testAgg, err := weightedMean(test, f.Epoch)
				if err != nil {
					return nil, err
				}
				out.Test = append(out.Test, testAgg)
			}
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidReduction, reduction)
	}
}

func collapseClient(rec Record) (ClientRoundMetrics, error) {
	switch m := rec.(type) {
	case ClientRoundMetrics:
		return m, nil
	case CandidateSetMetrics:
		collapsed, _, err := m.Reduce(Mean)

		return collapsed, err
	default:
		return ClientRoundMetrics{}, fmt.Errorf("%w: unexpected record kind %q", ErrInvalidShape, rec.Kind())
	}
}
