// Package api exposes the coordinator service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/genofl/genofl/coordinator"
	"github.com/genofl/genofl/pkg/api"
	pkgerrors "github.com/genofl/genofl/pkg/errors"
)

func MakeHandler(svc coordinator.Service, logger *slog.Logger, instanceID, version string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(loggingErrorEncoder(logger)),
	}

	mux.Route("/experiments", func(r chi.Router) {
		r.Post("/", otelhttp.NewHandler(kithttp.NewServer(
			createExperimentEndpoint(svc),
			decodeExperimentReq,
			api.EncodeResponse,
			opts...,
		), "create-experiment").ServeHTTP)
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listExperimentsEndpoint(svc),
			decodeListEntityReq,
			api.EncodeResponse,
			opts...,
		), "list-experiments").ServeHTTP)
		r.Route("/{experimentID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getExperimentEndpoint(svc),
				decodeEntityReq,
				api.EncodeResponse,
				opts...,
			), "get-experiment").ServeHTTP)
			r.Delete("/", otelhttp.NewHandler(kithttp.NewServer(
				deleteExperimentEndpoint(svc),
				decodeEntityReq,
				api.EncodeResponse,
				opts...,
			), "delete-experiment").ServeHTTP)
			r.Post("/start", otelhttp.NewHandler(kithttp.NewServer(
				startExperimentEndpoint(svc),
				decodeEntityReq,
				api.EncodeResponse,
				opts...,
			), "start-experiment").ServeHTTP)
			r.Get("/run", otelhttp.NewHandler(kithttp.NewServer(
				getRunEndpoint(svc),
				decodeEntityReq,
				api.EncodeResponse,
				opts...,
			), "get-run").ServeHTTP)
			r.Post("/export", otelhttp.NewHandler(kithttp.NewServer(
				exportModelEndpoint(svc),
				decodeExportReq,
				api.EncodeResponse,
				opts...,
			), "export-model").ServeHTTP)
		})
	})

	mux.Get("/health", api.Health("coordinator", instanceID, version))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func loggingErrorEncoder(logger *slog.Logger) kithttp.ErrorEncoder {
	return func(ctx context.Context, err error, w http.ResponseWriter) {
		logger.WarnContext(ctx, "request failed", slog.String("error", err.Error()))
		api.EncodeError(ctx, err, w)
	}
}

func decodeExperimentReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, fmt.Errorf("%w: unsupported content type", pkgerrors.ErrInvalidData)
	}

	var req experimentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(pkgerrors.ErrInvalidData, err)
	}

	return req, nil
}

func decodeEntityReq(_ context.Context, r *http.Request) (any, error) {
	return entityReq{
		id: chi.URLParam(r, "experimentID"),
	}, nil
}

func decodeListEntityReq(_ context.Context, r *http.Request) (any, error) {
	o, err := api.ReadNumQuery(r, api.OffsetKey, api.DefOffset)
	if err != nil {
		return nil, err
	}

	l, err := api.ReadNumQuery(r, api.LimitKey, api.DefLimit)
	if err != nil {
		return nil, err
	}

	return listEntityReq{
		offset: o,
		limit:  l,
	}, nil
}

func decodeExportReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, fmt.Errorf("%w: unsupported content type", pkgerrors.ErrInvalidData)
	}

	var req exportReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(pkgerrors.ErrInvalidData, err)
	}
	req.id = chi.URLParam(r, "experimentID")

	return req, nil
}
