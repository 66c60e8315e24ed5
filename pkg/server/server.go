// Package server runs the long-lived parts of the process (HTTP adapter,
// metrics endpoint, orphan collector) side by side and stops them together.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
)

// Component is a long-running part of the process.
//
// Serve blocks until ctx is cancelled or the component fails. It returns nil
// (or context.Canceled) on graceful shutdown. Stop may be called
// concurrently with Serve and more than once.
type Component interface {
	Serve(ctx context.Context) error
	Stop(ctx context.Context) error
	Name() string
}

// Func adapts a pair of functions to Component.
type Func struct {
	ComponentName string
	ServeFunc     func(ctx context.Context) error
	StopFunc      func(ctx context.Context) error
}

func (f Func) Serve(ctx context.Context) error { return f.ServeFunc(ctx) }

func (f Func) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}

func (f Func) Name() string { return f.ComponentName }

// Server manages the lifecycle of a set of components.
//
// Lifecycle:
//  1. Creation: New()
//  2. Registration: Add() for each component
//  3. Startup: Serve() starts all components concurrently
//  4. Shutdown: context cancellation, or any component failing, stops all
//     components in reverse registration order
//
// Thread safety:
// Add may be called concurrently before Serve. Serve may be called once.
type Server struct {
	components  []Component
	stopTimeout time.Duration

	mu     sync.Mutex
	served bool
}

// New creates a server. stopTimeout bounds the Stop calls issued during
// shutdown; 0 means 30s.
func New(stopTimeout time.Duration) *Server {
	if stopTimeout <= 0 {
		stopTimeout = 30 * time.Second
	}
	return &Server{stopTimeout: stopTimeout}
}

// Add registers a component. Names must be unique.
func (s *Server) Add(c Component) error {
	if c == nil {
		return errors.New("component cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add component after Serve has been called")
	}
	for _, existing := range s.components {
		if existing.Name() == c.Name() {
			return fmt.Errorf("component %s already registered", c.Name())
		}
	}

	s.components = append(s.components, c)
	logger.Debug("Registered %s component", c.Name())
	return nil
}

// Components returns a snapshot of the registered components.
func (s *Server) Components() []Component {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Component, len(s.components))
	copy(out, s.components)
	return out
}

// Serve starts every component and blocks until ctx is cancelled or one of
// them fails, then stops all of them and waits for their Serve calls to
// return.
//
// Returns:
//   - nil on graceful shutdown via ctx
//   - the first component error otherwise
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("serve already called")
	}
	s.served = true
	components := make([]Component, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	if len(components) == 0 {
		return errors.New("no components registered")
	}

	// Components see this context; cancelling it on the first failure makes
	// the others wind down too.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan componentError, len(components))
	var wg sync.WaitGroup

	logger.Info("Starting %d component(s)", len(components))
	for _, c := range components {
		wg.Add(1)
		go func(c Component) {
			defer wg.Done()

			err := c.Serve(runCtx)
			switch {
			case err == nil, errors.Is(err, context.Canceled) && runCtx.Err() != nil:
				logger.Debug("%s stopped", c.Name())
			default:
				logger.Error("%s failed: %v", c.Name(), err)
				errChan <- componentError{name: c.Name(), err: err}
			}
		}(c)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
	case ce := <-errChan:
		logger.Error("%s failed, shutting down: %v", ce.name, ce.err)
		shutdownErr = fmt.Errorf("%s: %w", ce.name, ce.err)
	}

	cancel()
	s.stopAll(components)
	wg.Wait()

	logger.Info("All components stopped")
	return shutdownErr
}

type componentError struct {
	name string
	err  error
}

// stopAll calls Stop on each component in reverse registration order.
// Errors are logged; every component is asked to stop.
func (s *Server) stopAll(components []Component) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s: %v", c.Name(), err)
		}
	}
}
