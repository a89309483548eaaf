package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Hardware modes.
const (
	HardwareModeHTTP   = "http"
	HardwareModeMemory = "memory"
)

// Config represents the application configuration
type Config struct {
	Log             LogConfig        `yaml:"log"`
	Database        DatabaseConfig   `yaml:"database"`
	Ledger          LedgerConfig     `yaml:"ledger"`
	EventBus        EventBusConfig   `yaml:"eventbus"`
	Transition      TransitionConfig `yaml:"transition"`
	Hardware        HardwareConfig   `yaml:"hardware"`
	Devices         DevicesConfig    `yaml:"devices"`
	Safety          SafetyConfig     `yaml:"safety"`
	API             APIConfig        `yaml:"api"`
	MQTT            MQTTConfig       `yaml:"mqtt"`
	Script          string           `yaml:"script"`           // Optional Lua automation script
	ShutdownTimeout Duration         `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LedgerConfig contains audit log settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
	QueueSize       int      `yaml:"queue_size"` // Pending entries before new ones are dropped
}

// Retention returns the retention period as a duration
func (c *LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// TransitionConfig contains transition defaults
type TransitionConfig struct {
	Frequency float64 `yaml:"frequency"` // Ticks per second (default: 60)
}

// HardwareConfig selects and configures the hardware port
type HardwareConfig struct {
	Mode      string             `yaml:"mode"`       // "http" or "memory"
	Endpoint  string             `yaml:"endpoint"`   // Sidecar base URL for http mode
	Timeout   Duration           `yaml:"timeout"`    // HTTP timeout for sidecar requests
	WriteRate float64            `yaml:"write_rate"` // Max writes per second, 0 = unlimited
	Initial   map[string]float64 `yaml:"initial"`    // Seed values for memory mode, keyed by quantity
}

// DevicesConfig contains device enumeration settings
type DevicesConfig struct {
	Static       []DeviceConfig `yaml:"static"`        // Devices assumed present at startup
	Debounce     Duration       `yaml:"debounce"`      // Quiet period before availability flips
	PollInterval Duration       `yaml:"poll_interval"` // Sidecar enumeration interval, 0 = disabled
}

// DeviceConfig identifies one connected device
type DeviceConfig struct {
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	Class        string `yaml:"class"`
	Serial       string `yaml:"serial"`
}

// SafetyConfig contains default safety caps
type SafetyConfig struct {
	MaxBrightness map[string]float64 `yaml:"max_brightness"` // Keyed by driver family
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GetAddr returns the listen address
func (c *APIConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	TLS            bool     `yaml:"tls"`
	ClientID       string   `yaml:"client_id"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	QoS            int      `yaml:"qos"`
	Prefix         string   `yaml:"prefix"`
	ReconnectDelay Duration `yaml:"reconnect_delay"`
	MaxReconnect   Duration `yaml:"max_reconnect"`
}

// GetShutdownTimeout returns the general shutdown timeout
func (c *Config) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout.Duration()
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration data, expanding environment variables and
// applying defaults.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./dimmerd.sqlite"
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}
	if cfg.Ledger.QueueSize == 0 {
		cfg.Ledger.QueueSize = 256
	}

	if cfg.Transition.Frequency == 0 {
		cfg.Transition.Frequency = 60
	}

	// Hardware defaults
	if cfg.Hardware.Mode == "" {
		cfg.Hardware.Mode = HardwareModeMemory
	}
	if cfg.Hardware.Timeout == 0 {
		cfg.Hardware.Timeout = Duration(2 * time.Second)
	}

	if cfg.Devices.Debounce == 0 {
		cfg.Devices.Debounce = Duration(500 * time.Millisecond)
	}

	// API defaults
	if cfg.API.Host == "" {
		cfg.API.Host = "127.0.0.1"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 9090
	}

	// MQTT defaults
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "dimmerd"
	}
	if cfg.MQTT.Prefix == "" {
		cfg.MQTT.Prefix = "dimmerd"
	}
	if cfg.MQTT.ReconnectDelay == 0 {
		cfg.MQTT.ReconnectDelay = Duration(2 * time.Second)
	}
	if cfg.MQTT.MaxReconnect == 0 {
		cfg.MQTT.MaxReconnect = Duration(2 * time.Minute)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// Validate checks values that have no sensible default
func (c *Config) Validate() error {
	switch c.Hardware.Mode {
	case HardwareModeMemory:
	case HardwareModeHTTP:
		if c.Hardware.Endpoint == "" {
			return fmt.Errorf("hardware.endpoint is required in %q mode", HardwareModeHTTP)
		}
	default:
		return fmt.Errorf("unknown hardware.mode %q", c.Hardware.Mode)
	}
	if c.Hardware.WriteRate < 0 {
		return fmt.Errorf("hardware.write_rate must not be negative")
	}
	if c.Transition.Frequency < 0 {
		return fmt.Errorf("transition.frequency must not be negative")
	}
	if len(c.Devices.Static) > 0 && c.Devices.PollInterval > 0 {
		return fmt.Errorf("devices.static and devices.poll_interval are mutually exclusive")
	}
	if c.MQTT.Enabled && c.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host is required when mqtt is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	for family, v := range c.Safety.MaxBrightness {
		if v <= 0 {
			return fmt.Errorf("safety.max_brightness.%s must be positive", family)
		}
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
