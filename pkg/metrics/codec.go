package metrics

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var ErrUnknownKind = errors.New("unknown metric record kind")

// envelope is the wire schema for metric records: an explicit kind
// discriminator plus the fields of that kind, CBOR-encoded. Nodes and the
// coordinator must agree on this schema, so fields are never added to a kind
// without a new kind name.
type envelope struct {
	Kind         Kind                 `cbor:"kind"`
	ClientRound  *ClientRoundMetrics  `cbor:"client_round,omitempty"`
	CandidateSet *CandidateSetMetrics `cbor:"candidate_set,omitempty"`
}

// Encode serializes a metric record for transport.
func Encode(rec Record) ([]byte, error) {
	env := envelope{Kind: rec.Kind()}
	switch m := rec.(type) {
	case ClientRoundMetrics:
		env.ClientRound = &m
	case CandidateSetMetrics:
		env.CandidateSet = &m
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, rec.Kind())
	}

	data, err := cbor.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metric record: %w", err)
	}

	return data, nil
}

// Decode restores a metric record into its native shape.
func Decode(data []byte) (Record, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode metric record: %w", err)
	}

	switch env.Kind {
	case KindClientRound:
		if env.ClientRound == nil {
			return nil, fmt.Errorf("%w: client_round payload missing", ErrUnknownKind)
		}

		return *env.ClientRound, nil
	case KindCandidateSet:
		if env.CandidateSet == nil {
			return nil, fmt.Errorf("%w: candidate_set payload missing", ErrUnknownKind)
		}

		return *env.CandidateSet, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}
