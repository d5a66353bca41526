// Package sdk is the Go client for the coordinator HTTP API.
package sdk

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"github.com/genofl/genofl/experiment"
)

const ctJSON string = "application/json"

type SDK interface {
	// CreateExperiment registers a new experiment with the coordinator.
	//
	// example:
	//  exp := experiment.Experiment{
	//    Name:   "hypertension-gwas",
	//    Nodes:  []string{"site-a", "site-b"},
	//    Rounds: 10,
	//  }
	//  exp, _ := sdk.CreateExperiment(exp)
	//  fmt.Println(exp)
	CreateExperiment(exp experiment.Experiment) (experiment.Experiment, error)

	// GetExperiment gets an experiment by id.
	//
	// example:
	//  exp, _ := sdk.GetExperiment("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(exp)
	GetExperiment(id string) (experiment.Experiment, error)

	// ListExperiments lists experiments.
	//
	// example:
	//  page, _ := sdk.ListExperiments(0, 10)
	//  fmt.Println(page)
	ListExperiments(offset, limit uint64) (experiment.Page, error)

	// DeleteExperiment deletes an experiment.
	DeleteExperiment(id string) error

	// StartExperiment launches the experiment's training run.
	StartExperiment(id string) error

	// GetRun gets the run state of an experiment: current round, loss
	// history and the selected candidate column.
	GetRun(id string) (experiment.Run, error)

	// ExportModel asks the coordinator to copy the experiment's best
	// snapshot to the given path.
	ExportModel(id, path string) error
}

type genoSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &genoSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

func (sdk *genoSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", ctJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}
