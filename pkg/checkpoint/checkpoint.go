// Package checkpoint tracks per-round aggregated validation loss and persists
// the best global parameters seen so far. It is driven from the coordinator's
// single round loop, so no locking is done here.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/genofl/genofl/pkg/fedavg"
)

const snapshotFile = "best_model.ckpt"

var ErrSnapshotMissing = errors.New("no checkpoint has been saved yet")

// Snapshot is the on-disk archive: the full parameter set plus the round it
// was captured at.
type Snapshot struct {
	Round  int               `cbor:"round"`
	Layers fedavg.Parameters `cbor:"layers"`
}

type Tracker struct {
	dir     string
	history []float64
	logger  *slog.Logger
}

func NewTracker(dir string, logger *slog.Logger) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Tracker{dir: dir, logger: logger}, nil
}

// Record appends the round's aggregated validation loss to the history.
func (t *Tracker) Record(_ int, loss float64) {
	t.history = append(t.history, loss)
}

// History returns the recorded losses, oldest first.
func (t *Tracker) History() []float64 {
	out := make([]float64, len(t.history))
	copy(out, t.history)

	return out
}

// MaybeSave persists params as the current best snapshot iff the latest
// recorded loss equals the running minimum of the history. Ties count as a
// new best and overwrite. Empty params (e.g. no node reported this round)
// and filesystem failures are logged and swallowed: losing one checkpoint
// must not abort the run.
func (t *Tracker) MaybeSave(round int, params fedavg.Parameters) {
	if params.Empty() {
		t.logger.Warn("No aggregated parameters to checkpoint", slog.Int("round", round))

		return
	}
	if len(t.history) == 0 || t.history[len(t.history)-1] != t.min() {
		return
	}

	if err := t.save(round, params); err != nil {
		t.logger.Error("Failed to save checkpoint",
			slog.Int("round", round),
			slog.Any("error", err))

		return
	}

	t.logger.Info("Saved best model checkpoint",
		slog.Int("round", round),
		slog.Float64("min_val_loss", t.history[len(t.history)-1]),
		slog.String("dir", t.dir))
}

func (t *Tracker) min() float64 {
	m := t.history[0]
	for _, l := range t.history[1:] {
		if l < m {
			m = l
		}
	}

	return m
}

func (t *Tracker) save(round int, params fedavg.Parameters) error {
	data, err := cbor.Marshal(Snapshot{Round: round, Layers: params})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// Write-then-rename keeps exactly one live snapshot path.
	tmp, err := os.CreateTemp(t.dir, snapshotFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path()); err != nil {
		os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	return nil
}

// LoadBest reloads the best snapshot saved so far.
func (t *Tracker) LoadBest() (Snapshot, error) {
	data, err := os.ReadFile(t.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, ErrSnapshotMissing
		}

		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return snap, nil
}

// Export copies the best snapshot to dst for final model delivery.
func (t *Tracker) Export(dst string) error {
	src, err := os.Open(t.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrSnapshotMissing
		}

		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to export snapshot: %w", err)
	}

	return out.Sync()
}

func (t *Tracker) path() string {
	return filepath.Join(t.dir, snapshotFile)
}
