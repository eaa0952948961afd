package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/brokerlink/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is used when the config leaves connect_timeout unset.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout bounds publish, subscribe and unsubscribe acknowledgements.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is used when the config leaves keep_alive unset.
	defaultKeepAlive = 60 * time.Second

	// defaultReconnectInterval is the supervisor backoff when the config leaves it unset.
	defaultReconnectInterval = 10 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// brokerURL returns scheme://host:port, with ssl when TLS is enabled and tcp otherwise.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// tlsConfigFor returns the TLS settings for the broker connection, or nil
// when TLS is disabled.
//
// With InsecureSkipVerify set, the returned config accepts any certificate
// chain and any hostname.
func tlsConfigFor(cfg config.MQTTConfig) *tls.Config {
	if !cfg.Broker.TLS {
		return nil
	}
	return &tls.Config{
		MinVersion:         tlsMinVersion,
		ServerName:         cfg.Broker.Host,
		InsecureSkipVerify: cfg.Broker.InsecureSkipVerify, //nolint:gosec // explicit opt-in via mqtt.broker.insecure_skip_verify
	}
}

// buildClientOptions creates paho MQTT options from brokerlink config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Transport-level automatic reconnect (the supervisor owns initial connect retries)
//   - In-flight limit for resumed publishes
//   - TLS configuration (if enabled)
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(cfg.Reconnect.Automatic)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(orDefault(cfg.ReconnectInterval(), defaultReconnectInterval))

	opts.SetConnectTimeout(orDefault(cfg.ConnectTimeout(), defaultConnectTimeout))
	opts.SetKeepAlive(orDefault(cfg.KeepAlive(), defaultKeepAlive))

	if cfg.MaxInflight > 0 {
		opts.SetMaxResumePubInFlight(cfg.MaxInflight)
	}

	if tlsCfg := tlsConfigFor(cfg); tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	return opts
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
