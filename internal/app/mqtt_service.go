package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/config"
	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/devices"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
	"github.com/dokzlo13/dimmerd/internal/mqtt"
)

// MQTTService connects to the broker and runs the command bridge.
type MQTTService struct {
	cfg         *config.Config
	controllers *controller.Registry
	feed        *devices.Feed

	client *mqtt.Client
	Bridge *mqtt.Bridge
}

// NewMQTTService creates a new MQTTService. Nothing connects until Start.
func NewMQTTService(cfg *config.Config, controllers *controller.Registry, feed *devices.Feed) *MQTTService {
	return &MQTTService{
		cfg:         cfg,
		controllers: controllers,
		feed:        feed,
	}
}

// Start connects and starts the bridge if MQTT is enabled.
func (s *MQTTService) Start(ctx context.Context, bus *eventbus.Bus) error {
	if !s.cfg.MQTT.Enabled {
		return nil
	}

	mc := s.cfg.MQTT
	topics := mqtt.Topics{Prefix: mc.Prefix}

	client, err := mqtt.Connect(mqtt.Options{
		Host:           mc.Host,
		Port:           mc.Port,
		TLS:            mc.TLS,
		ClientID:       mc.ClientID,
		Username:       mc.Username,
		Password:       mc.Password,
		QoS:            byte(mc.QoS),
		StatusTopic:    topics.Status(),
		ReconnectDelay: mc.ReconnectDelay.Duration(),
		MaxReconnect:   mc.MaxReconnect.Duration(),
	})
	if err != nil {
		return err
	}
	s.client = client

	// Device enumeration over MQTT only when nothing else feeds the devices.
	feed := s.feed
	if len(s.cfg.Devices.Static) > 0 || s.cfg.Devices.PollInterval > 0 {
		feed = nil
	}

	s.Bridge = mqtt.NewBridge(client, topics, s.controllers, feed)
	return s.Bridge.Start(ctx, bus)
}

// Close disconnects from the broker.
func (s *MQTTService) Close() {
	if s.client == nil {
		return
	}
	if err := s.client.Close(); err != nil {
		log.Warn().Err(err).Msg("MQTT disconnect error")
	}
}
