package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/genofl/genofl/coordinator"
	"github.com/genofl/genofl/coordinator/api"
	"github.com/genofl/genofl/coordinator/middleware"
	"github.com/genofl/genofl/pkg/mqtt"
	"github.com/genofl/genofl/pkg/prometheus"
	"github.com/genofl/genofl/pkg/server"
	"github.com/genofl/genofl/pkg/storage"
	"github.com/genofl/genofl/pkg/storage/badger"
	"github.com/genofl/genofl/pkg/tracing"
)

const (
	svcName       = "coordinator"
	version       = "0.1.0"
	defHTTPPort   = "7070"
	envPrefixHTTP = "GENOFL_COORDINATOR_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel     string        `env:"GENOFL_COORDINATOR_LOG_LEVEL"     envDefault:"info"`
	InstanceID   string        `env:"GENOFL_COORDINATOR_INSTANCE_ID"`
	MQTTAddress  string        `env:"GENOFL_COORDINATOR_MQTT_ADDRESS"  envDefault:"tcp://localhost:1883"`
	MQTTQoS      uint8         `env:"GENOFL_COORDINATOR_MQTT_QOS"      envDefault:"2"`
	MQTTTimeout  time.Duration `env:"GENOFL_COORDINATOR_MQTT_TIMEOUT"  envDefault:"30s"`
	MQTTUsername string        `env:"GENOFL_COORDINATOR_MQTT_USERNAME"`
	MQTTPassword string        `env:"GENOFL_COORDINATOR_MQTT_PASSWORD"`
	DBPath       string        `env:"GENOFL_COORDINATOR_DB_PATH"`
	SnapshotRoot string        `env:"GENOFL_COORDINATOR_SNAPSHOT_ROOT" envDefault:"./snapshots"`
	OTELURL      url.URL       `env:"GENOFL_COORDINATOR_OTEL_URL"`
	TraceRatio   float64       `env:"GENOFL_COORDINATOR_TRACE_RATIO"   envDefault:"0"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := tracing.NewProvider(ctx, svcName, cfg.OTELURL, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName+"-"+cfg.InstanceID, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}

	experimentsDB := storage.NewMemoryExperiments()
	runsDB := storage.NewMemoryRuns()
	if cfg.DBPath != "" {
		db, err := badger.Open(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open experiment database", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("error closing experiment database", slog.Any("error", err))
			}
		}()
		experimentsDB = db.Experiments()
		runsDB = db.Runs()
	}

	svc := coordinator.NewService(experimentsDB, runsDB, mqttPubSub, cfg.SnapshotRoot, logger)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := server.NewHTTPServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID, version), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
