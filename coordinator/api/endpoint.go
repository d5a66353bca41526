package api

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/genofl/genofl/coordinator"
	pkgerrors "github.com/genofl/genofl/pkg/errors"
)

func createExperimentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(experimentReq)
		if !ok {
			return experimentResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return experimentResponse{}, err
		}

		exp, err := svc.CreateExperiment(ctx, req.Experiment)
		if err != nil {
			return experimentResponse{}, err
		}

		return experimentResponse{
			Experiment: exp,
			created:    true,
		}, nil
	}
}

func getExperimentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return experimentResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return experimentResponse{}, err
		}

		exp, err := svc.GetExperiment(ctx, req.id)
		if err != nil {
			return experimentResponse{}, err
		}

		return experimentResponse{
			Experiment: exp,
		}, nil
	}
}

func listExperimentsEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listExperimentResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return listExperimentResponse{}, err
		}

		page, err := svc.ListExperiments(ctx, req.offset, req.limit)
		if err != nil {
			return listExperimentResponse{}, err
		}

		return listExperimentResponse{
			Page: page,
		}, nil
	}
}

func deleteExperimentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return experimentResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return experimentResponse{}, err
		}

		if err := svc.DeleteExperiment(ctx, req.id); err != nil {
			return experimentResponse{}, err
		}

		return experimentResponse{
			deleted: true,
		}, nil
	}
}

func startExperimentEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return messageResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return messageResponse{}, err
		}

		if err := svc.StartExperiment(ctx, req.id); err != nil {
			return messageResponse{}, err
		}

		return messageResponse{
			"started": true,
		}, nil
	}
}

func getRunEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return runResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return runResponse{}, err
		}

		run, err := svc.GetRun(ctx, req.id)
		if err != nil {
			return runResponse{}, err
		}

		return runResponse{
			Run: run,
		}, nil
	}
}

func exportModelEndpoint(svc coordinator.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(exportReq)
		if !ok {
			return messageResponse{}, pkgerrors.ErrInvalidData
		}
		if err := req.validate(); err != nil {
			return messageResponse{}, err
		}

		if err := svc.ExportModel(ctx, req.id, req.Path); err != nil {
			return messageResponse{}, err
		}

		return messageResponse{
			"exported": true,
			"path":     req.Path,
		}, nil
	}
}
