package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/genofl/genofl/node"
	"github.com/genofl/genofl/pkg/api"
	"github.com/genofl/genofl/pkg/mqtt"
	"github.com/genofl/genofl/pkg/server"
)

const (
	svcName       = "node"
	version       = "0.1.0"
	defHTTPPort   = "7071"
	envPrefixHTTP = "GENOFL_NODE_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel         string        `env:"GENOFL_NODE_LOG_LEVEL"         envDefault:"info"`
	ID               string        `env:"GENOFL_NODE_ID"`
	ExperimentID     string        `env:"GENOFL_NODE_EXPERIMENT_ID"`
	TrainerPath      string        `env:"GENOFL_NODE_TRAINER_PATH,notEmpty"`
	LivenessInterval time.Duration `env:"GENOFL_NODE_LIVENESS_INTERVAL" envDefault:"10s"`
	MQTTAddress      string        `env:"GENOFL_NODE_MQTT_ADDRESS"      envDefault:"tcp://localhost:1883"`
	MQTTQoS          uint8         `env:"GENOFL_NODE_MQTT_QOS"          envDefault:"2"`
	MQTTTimeout      time.Duration `env:"GENOFL_NODE_MQTT_TIMEOUT"      envDefault:"30s"`
	MQTTUsername     string        `env:"GENOFL_NODE_MQTT_USERNAME"`
	MQTTPassword     string        `env:"GENOFL_NODE_MQTT_PASSWORD"`
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

	if cfg.ID == "" {
		cfg.ID = svcName + "-" + uuid.NewString()
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

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, cfg.ID, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}

	trainer, err := node.NewWASMTrainer(ctx, cfg.TrainerPath, logger)
	if err != nil {
		logger.Error("failed to load trainer module", slog.String("error", err.Error()))

		return
	}

	svc, err := node.NewService(node.Config{
		ID:               cfg.ID,
		ExperimentID:     cfg.ExperimentID,
		TrainerPath:      cfg.TrainerPath,
		LivenessInterval: cfg.LivenessInterval,
	}, mqttPubSub, trainer, logger)
	if err != nil {
		logger.Error("failed to create node service", slog.String("error", err.Error()))

		return
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	mux := chi.NewRouter()
	mux.Get("/health", api.Health(svcName, cfg.ID, version))
	mux.Handle("/metrics", promhttp.Handler())
	hs := server.NewHTTPServer(ctx, cancel, svcName, httpServerConfig, mux, logger)

	g.Go(func() error {
		return svc.Run(ctx)
	})

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
