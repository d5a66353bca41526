// Package server wraps the lifecycle of the daemons' HTTP listeners:
// startup, TLS, and signal-driven graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const stopWaitTime = 5 * time.Second

type Config struct {
	Host     string `env:"HOST"      envDefault:"localhost"`
	Port     string `env:"PORT"      envDefault:""`
	CertFile string `env:"SERVER_CERT" envDefault:""`
	KeyFile  string `env:"SERVER_KEY"  envDefault:""`
}

type Server interface {
	Start() error
	Stop() error
}

type httpServer struct {
	ctx    context.Context
	cancel context.CancelFunc
	name   string
	server *http.Server
	cfg    Config
	logger *slog.Logger
}

func NewHTTPServer(ctx context.Context, cancel context.CancelFunc, name string, cfg Config, handler http.Handler, logger *slog.Logger) Server {
	return &httpServer{
		ctx:    ctx,
		cancel: cancel,
		name:   name,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Handler: handler,
		},
		cfg:    cfg,
		logger: logger,
	}
}

func (s *httpServer) Start() error {
	errCh := make(chan error, 1)

	switch {
	case s.cfg.CertFile != "" || s.cfg.KeyFile != "":
		s.logger.Info(fmt.Sprintf("%s service started using https", s.name),
			slog.String("address", s.server.Addr))
		go func() {
			errCh <- s.server.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		}()
	default:
		s.logger.Info(fmt.Sprintf("%s service started using http", s.name),
			slog.String("address", s.server.Addr))
		go func() {
			errCh <- s.server.ListenAndServe()
		}()
	}

	select {
	case <-s.ctx.Done():
		return s.Stop()
	case err := <-errCh:
		s.cancel()

		return err
	}
}

func (s *httpServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), stopWaitTime)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down %s server: %w", s.name, err)
	}
	s.logger.Info(fmt.Sprintf("%s service shutdown complete", s.name))

	return nil
}

// StopSignalHandler blocks until SIGINT or SIGTERM, then cancels the group
// context so every server winds down.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svcName string) error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info(fmt.Sprintf("%s service shutdown on %s signal", svcName, s))
		cancel()

		return nil
	case <-ctx.Done():
		return nil
	}
}
