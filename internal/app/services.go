package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/api"
	"github.com/dokzlo13/dimmerd/internal/config"
	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/db"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
	"github.com/dokzlo13/dimmerd/internal/ledger"
	"github.com/dokzlo13/dimmerd/internal/settings"
	"github.com/dokzlo13/dimmerd/internal/storage"
)

// Options are command line overrides.
type Options struct {
	ConfigPath string
	// Simulate forces the in-memory hardware port.
	Simulate bool
}

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Transitions are bound to this context and outlive individual requests.
	ctx    context.Context
	cancel context.CancelFunc

	// Core infrastructure
	DB       *db.DB
	Store    *storage.Store
	Settings *settings.Store
	Ledger   *ledger.Ledger
	Recorder *ledger.Recorder
	Bus      *eventbus.Bus

	// High-level services
	Hardware *HardwareService
	Lua      *LuaService
	MQTT     *MQTTService
	API      *APIService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config, opts Options) (*Services, error) {
	s := &Services{cfg: cfg}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	s.Store = storage.NewStore(database.DB)
	s.Settings, err = settings.Open(s.Store, cfg.Safety.MaxBrightness)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Ledger = ledger.New(database.DB)
	s.Recorder = ledger.NewRecorder(s.Ledger, cfg.Ledger.QueueSize)

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	deps := controller.Deps{
		Context:   s.ctx,
		Bus:       s.Bus,
		Audit:     s.Recorder,
		Frequency: cfg.Transition.Frequency,
	}
	s.Hardware = NewHardwareService(cfg, opts.Simulate, s.Settings, deps)

	s.Lua = NewLuaService(cfg, s.Hardware.Controllers, opts.ConfigPath)
	s.MQTT = NewMQTTService(cfg, s.Hardware.Controllers, s.Hardware.Feed)
	s.API = NewAPIService(cfg, api.Deps{
		Controllers: s.Hardware.Controllers,
		Drivers:     s.Hardware.Drivers,
		Settings:    s.Settings,
		Feed:        s.Hardware.Feed,
		Ledger:      s.Ledger,
	})

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	s.Recorder.Start()
	go s.Recorder.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration(), s.cfg.Ledger.Retention())

	if err := s.Hardware.Start(ctx); err != nil {
		return err
	}

	// Load Lua script before starting worker
	if err := s.Lua.LoadScript(); err != nil {
		return err
	}
	s.Lua.Start(ctx, s.Bus)

	if err := s.MQTT.Start(ctx, s.Bus); err != nil {
		return err
	}

	s.API.Start(ctx)
	s.API.SetReady(true)
	return nil
}

// ResetSettings discards persisted safety caps.
func (s *Services) ResetSettings() error {
	return s.Settings.Reset()
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources in reverse start order.
func (s *Services) Close() {
	if s.API != nil {
		s.API.SetReady(false)
	}
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.Hardware != nil {
		s.Hardware.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.Recorder != nil {
		s.Recorder.Close()
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}

func (s *Services) shutdownTimeout() time.Duration {
	if s.cfg == nil {
		return 5 * time.Second
	}
	return s.cfg.GetShutdownTimeout()
}
