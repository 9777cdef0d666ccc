// Package server runs the enabled transports together and shuts them down on
// SIGINT, SIGTERM, or the first failure.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service is a long-running component. Run blocks until ctx is cancelled or
// the service fails, and returns nil after a ctx-initiated stop.
type Service interface {
	Name() string
	Run(ctx context.Context) error
}

// FuncService adapts a function into the Service interface.
type FuncService struct {
	ServiceName string
	RunFn       func(ctx context.Context) error
}

// Name returns the service name.
func (f *FuncService) Name() string { return f.ServiceName }

// Run calls the underlying run function.
func (f *FuncService) Run(ctx context.Context) error { return f.RunFn(ctx) }

// Lifecycle runs a set of services under one cancellation scope.
type Lifecycle struct {
	logger   *zap.Logger
	services []Service
	mu       sync.Mutex
}

// NewLifecycle creates a new Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a service.
//
// Precondition: svc must be non-nil.
func (l *Lifecycle) Add(svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, svc)
}

// Len reports the number of registered services.
func (l *Lifecycle) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.services)
}

// Run starts every service and blocks until all have returned. A termination
// signal or cancellation of ctx stops all services; the first service error
// stops the rest and is returned.
//
// Postcondition: No service goroutine is running when Run returns.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.mu.Lock()
	services := append([]Service(nil), l.services...)
	l.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			name := svc.Name()
			l.logger.Info("starting service", zap.String("service", name))
			svcStart := time.Now()
			if err := svc.Run(gctx); err != nil {
				l.logger.Error("service failed",
					zap.String("service", name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				return fmt.Errorf("service %s: %w", name, err)
			}
			l.logger.Info("service stopped",
				zap.String("service", name),
				zap.Duration("uptime", time.Since(svcStart)),
			)
			return nil
		})
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	err := g.Wait()
	l.logger.Info("shutdown complete",
		zap.Duration("total_uptime", time.Since(start)),
	)
	return err
}
