package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/genofl/genofl/pkg/errors"
)

// ReadNumQuery reads a numeric query parameter, falling back to def when the
// parameter is absent.
func ReadNumQuery(r *http.Request, key string, def uint64) (uint64, error) {
	vals, ok := r.URL.Query()[key]
	if !ok {
		return def, nil
	}
	if len(vals) > 1 {
		return 0, fmt.Errorf("%w: duplicate query parameter %q", errors.ErrInvalidData, key)
	}

	v, err := strconv.ParseUint(vals[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", errors.ErrInvalidData, err)
	}

	return v, nil
}

type healthInfo struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	InstanceID string `json:"instance_id"`
	Version    string `json:"version"`
}

// Health returns a liveness handler for the given service.
func Health(service, instanceID, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", ContentType)
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(healthInfo{
			Status:     "pass",
			Service:    service,
			InstanceID: instanceID,
			Version:    version,
		}); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
