package app

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/config"
	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
	luart "github.com/dokzlo13/dimmerd/internal/lua"
)

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
}

// NewLuaService creates a new LuaService. configPath resolves relative
// script paths.
func NewLuaService(cfg *config.Config, controllers *controller.Registry, configPath string) *LuaService {
	runtime := luart.NewRuntime(luart.RuntimeDeps{
		Controllers: controllers,
		BaseDir:     filepath.Dir(configPath),
	})

	return &LuaService{
		cfg:     cfg,
		Runtime: runtime,
	}
}

// Enabled reports whether a script is configured.
func (s *LuaService) Enabled() bool {
	return s.cfg.Script != ""
}

// LoadScript loads and executes the Lua script.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	if !s.Enabled() {
		log.Info().Msg("No Lua script configured")
		return nil
	}
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start registers the script's event handlers and begins the Lua worker.
func (s *LuaService) Start(ctx context.Context, bus *eventbus.Bus) {
	if !s.Enabled() {
		return
	}
	s.Runtime.RegisterHandlers(ctx, bus)

	// The worker is the only goroutine that touches the Lua state.
	go s.Runtime.Run(ctx)
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
