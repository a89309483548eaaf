package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/dimmerd/internal/controller"
	"github.com/dokzlo13/dimmerd/internal/devices"
	"github.com/dokzlo13/dimmerd/internal/eventbus"
)

// Conn is the broker side of the bridge. Implemented by Client.
type Conn interface {
	Subscribe(topic string, handler MessageHandler) error
	Publish(topic string, payload []byte, retained bool) error
}

// SetCommand is the payload of {prefix}/{axis}/set. A positive DurationMs
// starts a transition, otherwise the value is written directly.
type SetCommand struct {
	Value          *float64 `json:"value"`
	DurationMs     int64    `json:"duration_ms,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	KeepTransition bool     `json:"keep_transition,omitempty"`
	Frequency      float64  `json:"frequency,omitempty"`
}

// TransitionState describes a running transition.
type TransitionState struct {
	ID         string  `json:"id"`
	Target     float64 `json:"target"`
	DurationMs int64   `json:"duration_ms"`
	Reason     string  `json:"reason,omitempty"`
}

// StatePayload is the retained payload of {prefix}/{axis}/state.
type StatePayload struct {
	Axis       string           `json:"axis"`
	Available  bool             `json:"available"`
	Value      *float64         `json:"value"`
	Min        *float64         `json:"min,omitempty"`
	Max        *float64         `json:"max,omitempty"`
	Transition *TransitionState `json:"transition,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Bridge maps MQTT commands onto controllers and publishes their state.
type Bridge struct {
	conn        Conn
	topics      Topics
	controllers *controller.Registry
	feed        *devices.Feed

	ctx context.Context
}

// NewBridge creates a bridge. feed may be nil to ignore device enumerations.
func NewBridge(conn Conn, topics Topics, controllers *controller.Registry, feed *devices.Feed) *Bridge {
	return &Bridge{
		conn:        conn,
		topics:      topics,
		controllers: controllers,
		feed:        feed,
		ctx:         context.Background(),
	}
}

// Start subscribes to command topics, follows controller events on bus and
// publishes the initial state of every axis.
func (b *Bridge) Start(ctx context.Context, bus *eventbus.Bus) error {
	b.ctx = ctx

	subs := map[string]MessageHandler{
		b.topics.Set("+"):    b.HandleSet,
		b.topics.Cancel("+"): b.HandleCancel,
	}
	if b.feed != nil {
		subs[b.topics.Devices()] = b.HandleDevices
	}
	for topic, handler := range subs {
		if err := b.conn.Subscribe(topic, handler); err != nil {
			return fmt.Errorf("failed to subscribe %s: %w", topic, err)
		}
	}

	if bus != nil {
		axisChanged := func(e eventbus.Event) { b.publishLogged(e.Axis) }
		bus.Subscribe(eventbus.EventTypeValueChanged, axisChanged)
		bus.Subscribe(eventbus.EventTypeTransitionStarted, axisChanged)
		bus.Subscribe(eventbus.EventTypeTransitionFinished, axisChanged)
		bus.Subscribe(eventbus.EventTypeAvailabilityChanged, func(eventbus.Event) { b.PublishAll() })
	}

	b.PublishAll()
	log.Info().Str("prefix", b.topics.Prefix).Msg("MQTT bridge started")
	return nil
}

// HandleSet applies a SetCommand.
func (b *Bridge) HandleSet(topic string, payload []byte) error {
	c, err := b.controllerFor(topic, ActionSet)
	if err != nil {
		return err
	}

	var cmd SetCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if cmd.Value == nil {
		return fmt.Errorf("%w: missing value", ErrInvalidPayload)
	}

	log.Debug().
		Str("axis", c.Name()).
		Float64("value", *cmd.Value).
		Int64("duration_ms", cmd.DurationMs).
		Str("reason", cmd.Reason).
		Msg("MQTT set command")

	if cmd.DurationMs > 0 {
		_, err := c.Transition(b.ctx, *cmd.Value, time.Duration(cmd.DurationMs)*time.Millisecond, controller.TransitionOptions{
			Reason:    cmd.Reason,
			Frequency: cmd.Frequency,
		})
		return err
	}

	return c.Set(b.ctx, *cmd.Value, controller.SetOptions{
		Reason:         cmd.Reason,
		KeepTransition: cmd.KeepTransition,
	})
}

// HandleCancel cancels the active transition of an axis.
func (b *Bridge) HandleCancel(topic string, _ []byte) error {
	c, err := b.controllerFor(topic, ActionCancel)
	if err != nil {
		return err
	}
	c.CancelActiveTransition()
	return nil
}

// HandleDevices publishes a device enumeration into the feed.
func (b *Bridge) HandleDevices(_ string, payload []byte) error {
	var ids []devices.Identity
	if err := json.Unmarshal(payload, &ids); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	b.feed.Publish(ids)
	return nil
}

func (b *Bridge) controllerFor(topic, wantAction string) (controller.Controller, error) {
	axis, action, ok := b.topics.Parse(topic)
	if !ok || action != wantAction {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return b.controllers.Get(axis)
}

// State builds the state payload of an axis.
func State(c controller.Controller) StatePayload {
	s := StatePayload{
		Axis:      c.Name(),
		Available: c.Available(),
		Timestamp: time.Now().UTC(),
	}
	if v, known := c.Value(); known {
		s.Value = &v
	}
	if bounds, ok := c.Bounds(); ok {
		s.Min, s.Max = &bounds.Min, &bounds.Max
	}
	if tr := c.ActiveTransition(); tr != nil {
		s.Transition = &TransitionState{
			ID:         tr.ID(),
			Target:     tr.Target(),
			DurationMs: tr.Duration().Milliseconds(),
			Reason:     tr.Reason(),
		}
	}
	return s
}

// PublishState publishes the retained state of one axis.
func (b *Bridge) PublishState(axis string) error {
	c, err := b.controllers.Get(axis)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(State(c))
	if err != nil {
		return err
	}
	return b.conn.Publish(b.topics.State(axis), payload, true)
}

// PublishAll publishes the state of every axis.
func (b *Bridge) PublishAll() {
	for _, name := range b.controllers.Names() {
		b.publishLogged(name)
	}
}

func (b *Bridge) publishLogged(axis string) {
	if err := b.PublishState(axis); err != nil {
		log.Warn().Err(err).Str("axis", axis).Msg("Failed to publish MQTT state")
	}
}
