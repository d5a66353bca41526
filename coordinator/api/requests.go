package api

import (
	"github.com/genofl/genofl/experiment"
	"github.com/genofl/genofl/pkg/errors"
)

type experimentReq struct {
	experiment.Experiment `json:",inline"`
}

func (e *experimentReq) validate() error {
	if e.Name == "" {
		return errors.ErrInvalidData
	}
	if len(e.Nodes) == 0 || e.Rounds <= 0 {
		return errors.ErrInvalidData
	}

	return nil
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return errors.ErrEmptyKey
	}

	return nil
}

type listEntityReq struct {
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	return nil
}

type exportReq struct {
	id   string
	Path string `json:"path"`
}

func (e *exportReq) validate() error {
	if e.id == "" {
		return errors.ErrEmptyKey
	}
	if e.Path == "" {
		return errors.ErrInvalidData
	}

	return nil
}
