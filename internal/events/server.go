package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceroller/internal/config"
)

// EmbeddedServer runs an in-process NATS server for single-binary deployments.
type EmbeddedServer struct {
	ns             *natsserver.Server
	startupTimeout time.Duration
	logger         *zap.Logger
}

// NewEmbeddedServer configures an embedded server listening on cfg.Host:cfg.Port.
// Port -1 picks a random free port.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a configured, not yet started server or a non-nil error.
func NewEmbeddedServer(cfg config.NATSConfig, logger *zap.Logger) (*EmbeddedServer, error) {
	ns, err := natsserver.NewServer(&natsserver.Options{
		ServerName: ClientName,
		Host:       cfg.Host,
		Port:       cfg.Port,
		NoSigs:     true,
		NoLog:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring embedded nats server: %w", err)
	}
	return &EmbeddedServer{ns: ns, startupTimeout: cfg.ConnectTimeout, logger: logger}, nil
}

// Start starts the server and waits until it accepts client connections.
//
// Postcondition: On nil return ClientURL is dialable.
func (s *EmbeddedServer) Start() error {
	s.ns.Start()
	if !s.ns.ReadyForConnections(s.startupTimeout) {
		s.ns.Shutdown()
		return errors.New("embedded nats server not ready for connections")
	}
	s.logger.Info("embedded nats server listening", zap.String("url", s.ClientURL()))
	return nil
}

// ClientURL returns the URL clients dial to reach the server.
func (s *EmbeddedServer) ClientURL() string {
	return s.ns.ClientURL()
}

// Name implements server.Service.
func (s *EmbeddedServer) Name() string { return "nats" }

// Run blocks until ctx is cancelled, then shuts the server down.
//
// Precondition: Start has returned nil.
func (s *EmbeddedServer) Run(ctx context.Context) error {
	<-ctx.Done()
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
	s.logger.Info("embedded nats server stopped")
	return nil
}
