// Package app wires configuration into the bpmctl services and runs the
// emulated BPM server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/bpm-client/internal/bpmstub"
)

// App orchestrates the lifecycle of the emulated BPM server.
type App struct {
	cfg  *Config
	stub *bpmstub.Server
}

// New creates a new App instance.
func New(cfg *Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := cfg.StubOptions()
	opts.Logger = slog.Default()
	stub, err := bpmstub.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create stub server: %w", err)
	}

	return &App{
		cfg:  cfg,
		stub: stub,
	}, nil
}

// Address returns the host:port the stub server listens on.
func (a *App) Address() string {
	return net.JoinHostPort(a.cfg.Stub.Host, strconv.FormatUint(uint64(a.cfg.Stub.Port), 10))
}

// Start starts all services and blocks until ctx is cancelled or a service fails.
// Uses errgroup for runtime error monitoring and shutdown function collection for coordinated cleanup.
func (a *App) Start(ctx context.Context) error {
	address := a.Address()
	return a.run(ctx, address, func(ctx context.Context) (<-chan error, error) {
		return a.stub.Start(ctx, address)
	})
}

// Serve is Start on an existing listener.
func (a *App) Serve(ctx context.Context, listener net.Listener) error {
	return a.run(ctx, listener.Addr().String(), func(ctx context.Context) (<-chan error, error) {
		return a.stub.Serve(ctx, listener), nil
	})
}

func (a *App) run(ctx context.Context, address string, start func(context.Context) (<-chan error, error)) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	// Startup phase: Start services
	slog.InfoContext(gCtx, "starting stub server", "address", address, "api_root", a.stub.APIRoot())
	stubErrCh, err := start(gCtx)
	if err != nil {
		return fmt.Errorf("stub startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.stub.Shutdown)

	// Monitor runtime errors - errgroup cancels context on first error
	g.Go(func() error {
		select {
		case err := <-stubErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "stub runtime error", "error", err)
				return fmt.Errorf("stub: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	slog.InfoContext(gCtx, "application ready", "address", address)

	runtimeErr := g.Wait()

	slog.InfoContext(gCtx, "shutting down services")

	// Shutdown phase: Stop all services
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "service shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
