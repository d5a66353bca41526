package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/genofl/genofl/experiment"
)

const experimentsEndpoint = "/experiments"

func (sdk *genoSDK) CreateExperiment(exp experiment.Experiment) (experiment.Experiment, error) {
	data, err := json.Marshal(exp)
	if err != nil {
		return experiment.Experiment{}, err
	}

	url := sdk.coordinatorURL + experimentsEndpoint

	body, err := sdk.processRequest(http.MethodPost, url, data, http.StatusCreated)
	if err != nil {
		return experiment.Experiment{}, err
	}

	var e experiment.Experiment
	if err := json.Unmarshal(body, &e); err != nil {
		return experiment.Experiment{}, err
	}

	return e, nil
}

func (sdk *genoSDK) GetExperiment(id string) (experiment.Experiment, error) {
	url := sdk.coordinatorURL + experimentsEndpoint + "/" + id

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return experiment.Experiment{}, err
	}

	var e experiment.Experiment
	if err := json.Unmarshal(body, &e); err != nil {
		return experiment.Experiment{}, err
	}

	return e, nil
}

func (sdk *genoSDK) ListExperiments(offset, limit uint64) (experiment.Page, error) {
	url := fmt.Sprintf("%s%s?offset=%d&limit=%d", sdk.coordinatorURL, experimentsEndpoint, offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return experiment.Page{}, err
	}

	var page experiment.Page
	if err := json.Unmarshal(body, &page); err != nil {
		return experiment.Page{}, err
	}

	return page, nil
}

func (sdk *genoSDK) DeleteExperiment(id string) error {
	url := sdk.coordinatorURL + experimentsEndpoint + "/" + id

	_, err := sdk.processRequest(http.MethodDelete, url, nil, http.StatusNoContent)

	return err
}

func (sdk *genoSDK) StartExperiment(id string) error {
	url := sdk.coordinatorURL + experimentsEndpoint + "/" + id + "/start"

	_, err := sdk.processRequest(http.MethodPost, url, nil, http.StatusOK)

	return err
}

func (sdk *genoSDK) GetRun(id string) (experiment.Run, error) {
	url := sdk.coordinatorURL + experimentsEndpoint + "/" + id + "/run"

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return experiment.Run{}, err
	}

	var run experiment.Run
	if err := json.Unmarshal(body, &run); err != nil {
		return experiment.Run{}, err
	}

	return run, nil
}

func (sdk *genoSDK) ExportModel(id, path string) error {
	data, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return err
	}

	url := sdk.coordinatorURL + experimentsEndpoint + "/" + id + "/export"

	_, err = sdk.processRequest(http.MethodPost, url, data, http.StatusOK)

	return err
}
