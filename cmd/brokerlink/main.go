// brokerlink - managed MQTT broker connection
//
// This is the main entry point for the brokerlink daemon. It keeps one
// supervised connection to an MQTT broker, subscribes to the topic filters
// listed in the config file and logs every message that arrives.
//
// Configuration is read from BROKERLINK_CONFIG (default configs/brokerlink.yaml).
// When metrics.listen is set, an HTTP server exposes /metrics, /healthz and
// /api/v1/status on that address.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/brokerlink/internal/api"
	"github.com/nerrad567/brokerlink/internal/infrastructure/config"
	"github.com/nerrad567/brokerlink/internal/infrastructure/logging"
	"github.com/nerrad567/brokerlink/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/brokerlink.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting brokerlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := mqtt.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	mqttLog := log.With("component", "mqtt")
	opts := []mqtt.Option{
		mqtt.WithLogger(mqttLog),
		mqtt.WithMetrics(metrics),
	}
	if len(cfg.Subscriptions) > 0 {
		filters, qos := subscriptionArgs(cfg.Subscriptions)
		opts = append(opts, mqtt.WithSubscriptions(filters, qos))
		log.Info("subscriptions configured", "filters", filters)
	}
	client, err := mqtt.New(ctx, cfg.MQTT, messageLogger(mqttLog), opts...)
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		_ = client.Close()
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Listen != "" {
		server, err := api.New(api.Deps{
			Listen:     cfg.Metrics.Listen,
			Logger:     log.With("component", "api"),
			Client:     client,
			Gatherer:   reg,
			Registerer: reg,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating api server: %w", err)
		}
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("brokerlink stopped")
	return nil
}

// getConfigPath returns the config file path from environment or default.
func getConfigPath() string {
	if path := os.Getenv("BROKERLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// messageLogger returns the daemon's event handler: it logs traffic and
// connection loss.
func messageLogger(log *logging.Logger) mqtt.EventFuncs {
	return mqtt.EventFuncs{
		OnMessage: func(topic string, payload []byte) {
			log.Info("message received", "topic", topic, "bytes", len(payload))
		},
		OnDeliveryComplete: func(topic string) {
			log.Debug("delivery complete", "topic", topic)
		},
		OnConnectionLost: func(err error) {
			log.Warn("broker connection lost", "error", err)
		},
	}
}

// subscriptionArgs splits configured subscriptions into the parallel slices
// mqtt.WithSubscriptions expects.
func subscriptionArgs(subs []config.SubscriptionConfig) ([]string, []byte) {
	filters := make([]string, len(subs))
	qos := make([]byte, len(subs))
	for i, s := range subs {
		filters[i] = s.Topic
		qos[i] = byte(s.QoS) //nolint:gosec // validated 0..2 by config.Validate
	}
	return filters, qos
}
