// Package mqtt bridges the controllers to an MQTT broker: commands come in on
// per-axis topics and retained state goes out.
package mqtt

import (
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
	keepAlive         = 60 * time.Second
	maxPayloadSize    = 1 << 20
)

// MessageHandler handles a received message. Returned errors are logged.
type MessageHandler func(topic string, payload []byte) error

// Options configures the broker connection.
type Options struct {
	Host     string
	Port     int
	TLS      bool
	ClientID string
	Username string
	Password string
	QoS      byte

	// StatusTopic receives a retained online/offline marker and the last will.
	StatusTopic    string
	ReconnectDelay time.Duration
	MaxReconnect   time.Duration
}

// Client wraps paho with subscription restore on reconnect.
type Client struct {
	client pahomqtt.Client
	opts   Options

	mu            sync.RWMutex
	subscriptions map[string]subscription
	connected     bool
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker and waits for the first connection.
func Connect(opts Options) (*Client, error) {
	c := &Client{
		opts:          opts,
		subscriptions: make(map[string]subscription),
	}

	po := pahomqtt.NewClientOptions()
	scheme := "tcp"
	if opts.TLS {
		scheme = "ssl"
		po.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	po.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, opts.Host, opts.Port))
	po.SetClientID(opts.ClientID)
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}
	po.SetCleanSession(true)
	po.SetAutoReconnect(true)
	po.SetConnectRetry(true)
	if opts.ReconnectDelay > 0 {
		po.SetConnectRetryInterval(opts.ReconnectDelay)
	}
	if opts.MaxReconnect > 0 {
		po.SetMaxReconnectInterval(opts.MaxReconnect)
	}
	po.SetConnectTimeout(connectTimeout)
	po.SetKeepAlive(keepAlive)
	if opts.StatusTopic != "" {
		po.SetWill(opts.StatusTopic, statusPayload("offline", opts.ClientID), 1, true)
	}

	po.SetOnConnectHandler(func(pahomqtt.Client) { c.handleConnect() })
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.setConnected(false)
		log.Warn().Err(err).Msg("MQTT connection lost")
	})
	po.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		log.Debug().Msg("MQTT reconnecting")
	})

	c.client = pahomqtt.NewClient(po)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; mark connected now so callers
	// can subscribe right away.
	c.setConnected(true)
	log.Info().Str("host", opts.Host).Int("port", opts.Port).Msg("Connected to MQTT broker")

	return c, nil
}

func (c *Client) handleConnect() {
	c.setConnected(true)

	c.mu.RLock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}
	c.mu.RUnlock()

	if c.opts.StatusTopic != "" {
		c.client.Publish(c.opts.StatusTopic, 1, true, statusPayload("online", c.opts.ClientID))
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// Subscribe registers handler for topic (wildcards allowed). The
// subscription is restored after reconnects.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.mu.Lock()
	c.subscriptions[topic] = subscription{qos: c.opts.QoS, handler: handler}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, c.opts.QoS, c.wrapHandler(handler))
	if !token.WaitTimeout(publishTimeout) {
		c.forget(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		c.forget(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (c *Client) forget(topic string) {
	c.mu.Lock()
	delete(c.subscriptions, topic)
	c.mu.Unlock()
}

// Publish sends payload to topic with the configured QoS.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.opts.QoS, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close publishes the offline marker and disconnects.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() && c.opts.StatusTopic != "" {
		token := c.client.Publish(c.opts.StatusTopic, 1, true, statusPayload("offline", c.opts.ClientID))
		token.WaitTimeout(publishTimeout)
	}

	c.client.Disconnect(disconnectQuiesce)
	c.setConnected(false)
	return nil
}

// wrapHandler adds panic recovery and error logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("topic", msg.Topic()).Msg("MQTT handler panicked")
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("MQTT handler failed")
		}
	}
}

func statusPayload(status, clientID string) string {
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`,
		status, clientID, time.Now().UTC().Format(time.RFC3339))
}
