package app

import (
	"context"

	"github.com/dokzlo13/dimmerd/internal/api"
	"github.com/dokzlo13/dimmerd/internal/config"
)

// APIService provides the HTTP API and its health check endpoints.
type APIService struct {
	cfg    *config.Config
	Server *api.Server
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, deps api.Deps) *APIService {
	deps.Addr = cfg.API.GetAddr()
	deps.ShutdownTimeout = cfg.GetShutdownTimeout()
	return &APIService{
		cfg:    cfg,
		Server: api.New(deps),
	}
}

// Start begins serving if enabled. The server stops when ctx is cancelled.
func (s *APIService) Start(ctx context.Context) {
	if !s.cfg.API.Enabled {
		return
	}
	go s.Server.Run(ctx)
}

// SetReady flips the readiness probe.
func (s *APIService) SetReady(ready bool) {
	s.Server.SetReady(ready)
}
