package node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/fedavg"
	"github.com/genofl/genofl/pkg/metrics"
)

// Trainer runs local training and evaluation against the node's private
// genotype data.
type Trainer interface {
	Fit(ctx context.Context, ins experiment.FitIns) (fedavg.Parameters, int, error)
	Evaluate(ctx context.Context, ins experiment.EvaluateIns) (EvalReport, error)
	Close(ctx context.Context) error
}

// EvalReport is one evaluation result before it goes on the wire: the loss
// and sample count for weighting, plus the full metric record.
type EvalReport struct {
	Loss       float64
	NumSamples int
	Metrics    metrics.Record
}

const (
	fitCommand      = "fit"
	evaluateCommand = "evaluate"
)

// fitResponse and evaluateResponse are the trainer module's stdout formats.
type fitResponse struct {
	Layers     fedavg.Parameters `json:"layers"`
	NumSamples int               `json:"num_samples"`
}

type evaluateResponse struct {
	Loss         float64                      `json:"loss"`
	NumSamples   int                          `json:"num_samples"`
	ClientRound  *metrics.ClientRoundMetrics  `json:"client_round,omitempty"`
	CandidateSet *metrics.CandidateSetMetrics `json:"candidate_set,omitempty"`
}

// wasmTrainer executes a WASI trainer module. Each call instantiates the
// compiled module once: the request travels in on stdin as JSON and the
// response comes back on stdout.
type wasmTrainer struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	logger   *slog.Logger
}

func NewWASMTrainer(ctx context.Context, path string, logger *slog.Logger) (Trainer, error) {
	binary, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trainer module: %w", err)
	}

	r := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	compiled, err := r.CompileModule(ctx, binary)
	if err != nil {
		r.Close(ctx)

		return nil, fmt.Errorf("failed to compile trainer module: %w", err)
	}

	return &wasmTrainer{
		runtime:  r,
		compiled: compiled,
		logger:   logger,
	}, nil
}

func (t *wasmTrainer) Fit(ctx context.Context, ins experiment.FitIns) (fedavg.Parameters, int, error) {
	var resp fitResponse
	if err := t.invoke(ctx, fitCommand, ins, &resp); err != nil {
		return nil, 0, err
	}
	if resp.NumSamples <= 0 {
		return nil, 0, errors.New("trainer reported no training samples")
	}

	return resp.Layers, resp.NumSamples, nil
}

func (t *wasmTrainer) Evaluate(ctx context.Context, ins experiment.EvaluateIns) (EvalReport, error) {
	var resp evaluateResponse
	if err := t.invoke(ctx, evaluateCommand, ins, &resp); err != nil {
		return EvalReport{}, err
	}

	var rec metrics.Record
	switch {
	case resp.CandidateSet != nil:
		rec = *resp.CandidateSet
	case resp.ClientRound != nil:
		rec = *resp.ClientRound
	default:
		return EvalReport{}, errors.New("trainer reported no metrics")
	}

	return EvalReport{
		Loss:       resp.Loss,
		NumSamples: resp.NumSamples,
		Metrics:    rec,
	}, nil
}

func (t *wasmTrainer) invoke(ctx context.Context, command string, req, resp any) error {
	in, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode trainer request: %w", err)
	}

	var out bytes.Buffer
	cfg := wazero.NewModuleConfig().
		WithArgs("trainer", command).
		WithStdin(bytes.NewReader(in)).
		WithStdout(&out).
		WithStderr(os.Stderr)

	mod, err := t.runtime.InstantiateModule(ctx, t.compiled, cfg)
	if err != nil {
		var exitErr *sys.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 0 {
			return fmt.Errorf("trainer %s failed: %w", command, err)
		}
	}
	if mod != nil {
		defer mod.Close(ctx)
	}

	if err := json.Unmarshal(out.Bytes(), resp); err != nil {
		return fmt.Errorf("failed to decode trainer %s response: %w", command, err)
	}

	return nil
}

func (t *wasmTrainer) Close(ctx context.Context) error {
	return t.runtime.Close(ctx)
}
