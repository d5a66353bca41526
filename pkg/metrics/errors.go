package metrics

import "errors"

var (
	// ErrInvalidReduction is returned for a reduction name other than
	// "mean" or "lassonet_best".
	ErrInvalidReduction = errors.New("reduction must be one of [mean, lassonet_best]")
	// ErrInvalidShape is returned when a reduction is applied to a metric
	// shape it cannot handle, e.g. lassonet_best on records without a
	// candidate dimension.
	ErrInvalidShape = errors.New("reduction applied to mismatched metric shape")
	// ErrEmptyInput is returned when reducing zero metric records.
	ErrEmptyInput = errors.New("no metric records to reduce")
)
