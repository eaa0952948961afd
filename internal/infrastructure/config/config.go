package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for brokerlink.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT          MQTTConfig           `yaml:"mqtt"`
	Logging       LoggingConfig        `yaml:"logging"`
	Metrics       MetricsConfig        `yaml:"metrics"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

// MQTTConfig contains MQTT broker connection settings.
//
// Once handed to mqtt.New the value is copied and never modified.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	MaxInflight int                 `yaml:"max_inflight"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`

	// ConnectTimeoutSeconds bounds a single connect handshake.
	ConnectTimeoutSeconds int `yaml:"connect_timeout"`

	// KeepAliveSeconds is the MQTT keepalive interval.
	KeepAliveSeconds int `yaml:"keep_alive"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`

	// InsecureSkipVerify disables certificate-chain and hostname verification
	// when TLS is enabled. Any server certificate is accepted.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// ClientID, when set, is used verbatim. Otherwise an id is generated
	// from ClientIDPrefix and a random suffix.
	ClientID       string `yaml:"client_id"`
	ClientIDPrefix string `yaml:"client_id_prefix"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	// Automatic enables the transport's own reconnect after a lost connection.
	Automatic bool `yaml:"automatic"`

	// Interval is the fixed delay in seconds between supervisor reconnect attempts.
	Interval int `yaml:"interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig contains settings for the operational HTTP endpoint.
type MetricsConfig struct {
	// Listen is the address serving /metrics, /healthz and /api/v1/status
	// (e.g. ":9102"). Empty disables the endpoint.
	Listen string `yaml:"listen"`
}

// SubscriptionConfig is a topic filter the daemon subscribes to on startup.
type SubscriptionConfig struct {
	Topic string `yaml:"topic"`
	QoS   int    `yaml:"qos"`
}

// Load reads configuration from a YAML file and applies environment overrides.
//
// Environment variables use the prefix BROKERLINK_ followed by the config path.
// For example: BROKERLINK_MQTT_HOST, BROKERLINK_LOG_LEVEL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		MQTT: DefaultMQTTConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// DefaultMQTTConfig returns the MQTT defaults used when a field is absent
// from the config file.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker: MQTTBrokerConfig{
			Host: "localhost",
			Port: 1883,
		},
		QoS:         1,
		MaxInflight: 10,
		Reconnect: MQTTReconnectConfig{
			Automatic: true,
			Interval:  10,
		},
		ConnectTimeoutSeconds: 10,
		KeepAliveSeconds:      60,
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BROKERLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("BROKERLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BROKERLINK_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing BROKERLINK_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("BROKERLINK_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("BROKERLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BROKERLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("BROKERLINK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	errs := c.MQTT.validationErrors()

	if c.MQTT.Reconnect.Interval < 1 {
		errs = append(errs, "mqtt.reconnect.interval must be at least 1 second")
	}

	for i, sub := range c.Subscriptions {
		if sub.Topic == "" {
			errs = append(errs, fmt.Sprintf("subscriptions[%d].topic is required", i))
		}
		if sub.QoS < 0 || sub.QoS > 2 {
			errs = append(errs, fmt.Sprintf("subscriptions[%d].qos must be 0, 1, or 2", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Validate checks the broker address and QoS fields of the MQTT section.
// The mqtt package calls this at construction time so a client never starts
// with a bad broker address. Timing fields fall back to defaults there.
func (m MQTTConfig) Validate() error {
	if errs := m.validationErrors(); len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m MQTTConfig) validationErrors() []string {
	var errs []string

	if strings.TrimSpace(m.Broker.Host) == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if m.Broker.Port < 1 || m.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if m.QoS < 0 || m.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if m.MaxInflight < 0 {
		errs = append(errs, "mqtt.max_inflight must not be negative")
	}

	return errs
}

// ReconnectInterval returns the supervisor backoff as a Duration.
func (m MQTTConfig) ReconnectInterval() time.Duration {
	return time.Duration(m.Reconnect.Interval) * time.Second
}

// ConnectTimeout returns the connect handshake timeout as a Duration.
func (m MQTTConfig) ConnectTimeout() time.Duration {
	return time.Duration(m.ConnectTimeoutSeconds) * time.Second
}

// KeepAlive returns the MQTT keepalive interval as a Duration.
func (m MQTTConfig) KeepAlive() time.Duration {
	return time.Duration(m.KeepAliveSeconds) * time.Second
}
