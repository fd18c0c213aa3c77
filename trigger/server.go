// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bureau-foundation/trigger/lib/clock"
)

// Server serves the admission controller on a TCP listener and runs
// the periodic reaper. Serve(ctx) blocks until the context is
// cancelled; cancellation stops intake (503) but never terminates
// running jobs — shutdown only stops the front door.
type Server struct {
	address         string
	handler         *Handler
	registry        *Registry
	clock           clock.Clock
	logger          *slog.Logger
	shutdownTimeout time.Duration
	sweepInterval   time.Duration

	// ready is closed after the listener is bound and the server is
	// accepting connections.
	ready chan struct{}

	// addr is the resolved listen address, available after ready is
	// closed. Useful when the configured address uses port 0.
	addr net.Addr
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address is the TCP listen address (e.g., "127.0.0.1:8377").
	Address string

	// Handler is the trigger Handler. Required.
	Handler *Handler

	// Registry is swept on the periodic timer. Required.
	Registry *Registry

	// SweepInterval bounds how stale the registry can get between
	// requests. Required.
	SweepInterval time.Duration

	// ShutdownTimeout is the maximum wait for in-flight requests
	// during graceful shutdown. Streaming responses routinely
	// outlive it; that is expected and not an error. Defaults to
	// 10 seconds if zero.
	ShutdownTimeout time.Duration

	// Clock drives the sweep ticker. Required.
	Clock clock.Clock

	// Logger is the structured logger. Required.
	Logger *slog.Logger
}

// NewServer creates a server that will listen on the configured TCP
// address. Call Serve to start accepting connections.
func NewServer(config ServerConfig) *Server {
	if config.Address == "" {
		panic("trigger.Server: Address is required")
	}
	if config.Handler == nil {
		panic("trigger.Server: Handler is required")
	}
	if config.Registry == nil {
		panic("trigger.Server: Registry is required")
	}
	if config.SweepInterval <= 0 {
		panic("trigger.Server: SweepInterval is required")
	}
	if config.Clock == nil {
		panic("trigger.Server: Clock is required")
	}
	if config.Logger == nil {
		panic("trigger.Server: Logger is required")
	}

	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Server{
		address:         config.Address,
		handler:         config.Handler,
		registry:        config.Registry,
		clock:           config.Clock,
		logger:          config.Logger,
		shutdownTimeout: timeout,
		sweepInterval:   config.SweepInterval,
		ready:           make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the server is bound and
// accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the resolved listen address. Only valid after Ready()
// is closed.
func (s *Server) Addr() net.Addr { return s.addr }

// Serve starts accepting HTTP connections and the periodic reaper.
// Blocks until ctx is cancelled, then sets the shutdown flag (so late
// requests observe 503) and performs graceful shutdown of idle
// connections. Open /trigger streams are not waited for beyond the
// shutdown timeout: their runs continue as independent processes.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler: s.handler,

		// No WriteTimeout: /trigger responses stream for the whole
		// run lifetime, which is bounded by the reaper, not by the
		// connection. Request reading stays bounded.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("trigger service listening",
		"address", s.addr.String(),
		"max_concurrent", s.registry.Max(),
		"run_timeout", s.registry.Timeout())

	// Periodic reaper: bounds registry staleness between requests so
	// /health ages stay honest and timed-out runs don't linger while
	// the service is idle.
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		ticker := s.clock.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reaped, killed := s.registry.Sweep()
				logSweep(s.logger, reaped, killed)
			}
		}
	}()

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested, stopping intake")
	case err := <-serveDone:
		<-sweeperDone
		return err
	}

	// Flag first: a request that races the listener close still gets
	// a clean 503 instead of an admission.
	s.handler.SetShuttingDown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	<-sweeperDone
	if errors.Is(err, context.DeadlineExceeded) {
		// Open trigger streams held the connections past the drain
		// window. Their processes keep running; only the responses
		// are cut short.
		s.logger.Info("shutdown timeout with streams still open, runs continue")
		return nil
	}
	if err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	s.logger.Info("trigger service stopped")
	return nil
}
