// Package api serves the HTTP control surface: axis values and transitions,
// driver status, safety caps, device enumeration and the audit log.
//
//	server := api.New(deps)
//	go server.Run(ctx) // shuts down when ctx is cancelled
package api

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/devices"
	"github.com/dokzlo13/dimmerd/internal/driver"
	"github.com/dokzlo13/dimmerd/internal/ledger"
	"github.com/dokzlo13/dimmerd/internal/settings"
)

const defaultShutdownTimeout = 10 * time.Second

// Deps holds the collaborators of the API server. Only Controllers is required.
type Deps struct {
	Addr            string
	ShutdownTimeout time.Duration

	Controllers *controller.Registry
	Drivers     *driver.Registry
	Settings    *settings.Store
	Feed        *devices.Feed
	Ledger      *ledger.Ledger
}

// Server is the HTTP API server.
type Server struct {
	deps    Deps
	handler http.Handler
	ready   atomic.Bool
}

// New creates a server. It does not listen until Run is called.
func New(deps Deps) *Server {
	if deps.ShutdownTimeout <= 0 {
		deps.ShutdownTimeout = defaultShutdownTimeout
	}
	s := &Server{deps: deps}
	s.handler = s.buildRouter()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetReady flips the /ready probe.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.deps.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", s.deps.Addr).Msg("Starting API server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.deps.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("API server error")
		return err
	}
	return nil
}
