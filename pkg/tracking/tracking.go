// Package tracking is the outbound boundary to the experiment-tracking
// service. Metric emission is fire-and-forget: failures are logged, never
// retried, and never affect the round loop.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/0x6flab/namegenerator"
)

type Tracker interface {
	// LogMetric emits one named scalar tagged with the epoch it belongs to.
	LogMetric(ctx context.Context, name string, value float64, epoch int)
}

type httpTracker struct {
	baseURL string
	runID   string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTP returns a tracker posting metrics for a freshly named run. runName
// may be empty, in which case a generated name is used.
func NewHTTP(baseURL, runName string, timeout time.Duration, logger *slog.Logger) Tracker {
	if runName == "" {
		runName = namegenerator.NewGenerator().Generate()
	}

	return &httpTracker{
		baseURL: baseURL,
		runID:   runName,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("run", runName)),
	}
}

type metricReq struct {
	Run   string  `json:"run"`
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Step  int     `json:"step"`
}

func (t *httpTracker) LogMetric(ctx context.Context, name string, value float64, epoch int) {
	body, err := json.Marshal(metricReq{Run: t.runID, Key: name, Value: value, Step: epoch})
	if err != nil {
		t.logger.Warn("Failed to encode tracking metric", slog.String("key", name), slog.Any("error", err))

		return
	}

	url := t.baseURL + "/api/runs/log-metric"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.logger.Warn("Failed to build tracking request", slog.Any("error", err))

		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Warn("Failed to emit tracking metric", slog.String("key", name), slog.Any("error", err))

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		t.logger.Warn("Tracking service rejected metric",
			slog.String("key", name),
			slog.String("status", fmt.Sprintf("%d", resp.StatusCode)))
	}
}

type noopTracker struct{}

// NewNoop returns a tracker that drops everything, for runs without a
// tracking service configured.
func NewNoop() Tracker { return noopTracker{} }

func (noopTracker) LogMetric(context.Context, string, float64, int) {}
