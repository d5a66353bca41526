package node

import (
	"errors"
	"time"
)

// Config describes one data node's identity and the experiment it serves.
type Config struct {
	ID               string
	ExperimentID     string
	TrainerPath      string
	LivenessInterval time.Duration
}

func (c Config) Validate() error {
	if c.ID == "" {
		return errors.New("node id is required")
	}
	if c.ExperimentID == "" {
		return errors.New("experiment id is required")
	}
	if c.LivenessInterval <= 0 {
		return errors.New("liveness interval must be positive")
	}

	return nil
}
