package api

import (
	"net/http"

	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/api"
)

var (
	_ api.Response = (*experimentResponse)(nil)
	_ api.Response = (*listExperimentResponse)(nil)
	_ api.Response = (*runResponse)(nil)
	_ api.Response = (*messageResponse)(nil)
)

type experimentResponse struct {
	experiment.Experiment
	created bool
	deleted bool
}

func (e experimentResponse) Code() int {
	if e.created {
		return http.StatusCreated
	}
	if e.deleted {
		return http.StatusNoContent
	}

	return http.StatusOK
}

func (e experimentResponse) Headers() map[string]string {
	if e.created {
		return map[string]string{
			"Location": "/experiments/" + e.ID,
		}
	}

	return map[string]string{}
}

func (e experimentResponse) Empty() bool {
	return e.deleted
}

type listExperimentResponse struct {
	experiment.Page
}

func (l listExperimentResponse) Code() int {
	return http.StatusOK
}

func (l listExperimentResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listExperimentResponse) Empty() bool {
	return false
}

type runResponse struct {
	experiment.Run
}

func (r runResponse) Code() int {
	return http.StatusOK
}

func (r runResponse) Headers() map[string]string {
	return map[string]string{}
}

func (r runResponse) Empty() bool {
	return false
}

type messageResponse map[string]any

func (m messageResponse) Code() int {
	return http.StatusOK
}

func (m messageResponse) Headers() map[string]string {
	return map[string]string{}
}

func (m messageResponse) Empty() bool {
	return false
}
