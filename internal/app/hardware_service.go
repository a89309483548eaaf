package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/config"
	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/devices"
	"github.com/dokzlo13/dimmerd/internal/driver"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
	"github.com/dokzlo13/dimmerd/internal/hwio"
	"github.com/dokzlo13/dimmerd/internal/settings"
)

// simulatedDefaults seed the in-memory port so every axis has a readable
// baseline: unity gains and neutral white.
var simulatedDefaults = map[hwio.Quantity]float64{
	hwio.QuantityDisplayGain:      1.0,
	hwio.QuantityBeyondBrightness: 200,
	hwio.QuantityImageGain:        1.0,
	hwio.QuantityColorTemperature: 6600,
}

// simulatedDevice stands in for a headset when nothing else is configured.
var simulatedDevice = devices.Identity{Manufacturer: "Valve", Model: "Index", Class: "simulated"}

// HardwareService owns the hardware port, the device feed, the drivers and
// the controllers built on them.
type HardwareService struct {
	cfg      *config.Config
	simulate bool

	Port        hwio.Port
	sidecar     *hwio.HTTPPort
	Feed        *devices.Feed
	Drivers     *driver.Registry
	Display     *controller.Hardware
	Controllers *controller.Registry
}

// NewHardwareService wires port, drivers and controllers.
func NewHardwareService(cfg *config.Config, simulate bool, caps *settings.Store, deps controller.Deps) *HardwareService {
	s := &HardwareService{
		cfg:      cfg,
		simulate: simulate || cfg.Hardware.Mode == config.HardwareModeMemory,
		Feed:     devices.NewFeed(),
	}

	var port hwio.Port
	if s.simulate {
		initial := make(map[hwio.Quantity]float64, len(simulatedDefaults))
		for q, v := range simulatedDefaults {
			initial[q] = v
		}
		for q, v := range cfg.Hardware.Initial {
			initial[hwio.Quantity(q)] = v
		}
		port = hwio.NewMemory(initial)
		log.Info().Msg("Using simulated hardware")
	} else {
		s.sidecar = hwio.NewHTTPPort(cfg.Hardware.Endpoint, cfg.Hardware.Timeout.Duration())
		port = s.sidecar
		log.Info().Str("endpoint", cfg.Hardware.Endpoint).Msg("Using hardware sidecar")
	}
	s.Port = hwio.NewLimited(port, cfg.Hardware.WriteRate)

	// Devices known up front are published before availability is derived,
	// so they count as present without waiting out the debounce.
	static := make([]devices.Identity, 0, len(cfg.Devices.Static))
	for _, d := range cfg.Devices.Static {
		static = append(static, devices.Identity{
			Manufacturer: d.Manufacturer,
			Model:        d.Model,
			Class:        d.Class,
			Serial:       d.Serial,
		})
	}
	if len(static) == 0 && s.simulate {
		static = append(static, simulatedDevice)
	}
	if len(static) > 0 {
		s.Feed.Publish(static)
	}

	debounce := cfg.Devices.Debounce.Duration()
	s.Drivers = driver.NewRegistry(
		driver.ValveIndex(s.Port, s.Feed.Availability(driver.ValveIndexDevice, debounce), caps),
		driver.BigscreenBeyond(s.Port, s.Feed.Availability(driver.BigscreenBeyondDevice, debounce), caps),
	)

	s.Display = controller.NewHardware(s.Drivers, deps)
	image := controller.NewSoftware(driver.ImageGain(s.Port), deps)
	cct := controller.NewCCT(driver.ColorTemperature(s.Port), deps)
	simple := controller.NewSimple(s.Display, image, deps)
	s.Controllers = controller.NewRegistry(s.Display, image, cct, simple)

	if deps.Bus != nil {
		s.Feed.Subscribe(func(ids []devices.Identity) {
			publishDevices(deps.Bus, ids)
		})
	}

	return s
}

// Start begins sidecar enumeration.
func (s *HardwareService) Start(ctx context.Context) error {
	interval := s.cfg.Devices.PollInterval.Duration()
	if s.sidecar != nil && interval > 0 {
		log.Info().Dur("interval", interval).Msg("Starting device enumeration")
		go devices.Poll(ctx, s.sidecar, s.Feed, interval)
	}

	if active := s.Drivers.Active(); active != nil {
		log.Info().Str("driver", active.ID()).Msg("Display driver active")
	} else {
		log.Warn().Msg("No display driver available yet")
	}
	return nil
}

// Close cancels every transition and releases the sidecar connection.
func (s *HardwareService) Close() {
	s.Controllers.CancelAll()
	if s.sidecar != nil {
		s.sidecar.Close()
	}
}

func publishDevices(bus *eventbus.Bus, ids []devices.Identity) {
	list := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		list = append(list, map[string]interface{}{
			"manufacturer": id.Manufacturer,
			"model":        id.Model,
			"class":        id.Class,
			"serial":       id.Serial,
		})
	}
	bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeDevicesChanged,
		Data: map[string]interface{}{
			"count":   len(ids),
			"devices": list,
		},
	})
}
