package mqtt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nerrad567/brokerlink/internal/infrastructure/config"
)

// Client is a managed MQTT connection.
//
// New starts a background Supervisor that connects the transport and keeps
// reconnecting it until Close is called. Publish, Subscribe and Unsubscribe
// are attempted regardless of connection state; while disconnected they
// fail through the transport.
//
// Subscriptions that succeed, and those given to WithSubscriptions, are
// remembered and sent again every time the transport connects. Sessions are
// clean, so the broker forgets them on each reconnect.
//
// Error policy:
//   - Publish, Subscribe and Close log failures and do not return them.
//   - Unsubscribe logs and returns the transport error unchanged.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Client struct {
	cfg        config.MQTTConfig
	transport  Transport
	supervisor *Supervisor
	logger     Logger
	metrics    *Metrics

	// subscriptions maps each tracked filter to its QoS.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Client at construction.
type Option func(*clientOptions)

type clientOptions struct {
	clientID  string
	logger    Logger
	metrics   *Metrics
	transport Transport
	interval  time.Duration
	subs      map[string]byte
}

// WithClientID uses id instead of the configured or generated client id.
func WithClientID(id string) Option {
	return func(o *clientOptions) { o.clientID = id }
}

// WithLogger sets the logger for the client, its supervisor and transport.
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithMetrics records connection and operation metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithTransport replaces the paho transport. The client id then comes from t.
func WithTransport(t Transport) Option {
	return func(o *clientOptions) { o.transport = t }
}

// WithSubscriptions subscribes filters[i] at qos[i] on every connect,
// starting with the first one. Extra entries in either slice are ignored.
func WithSubscriptions(filters []string, qos []byte) Option {
	return func(o *clientOptions) {
		if o.subs == nil {
			o.subs = make(map[string]byte, len(filters))
		}
		for i := 0; i < len(filters) && i < len(qos); i++ {
			o.subs[filters[i]] = qos[i]
		}
	}
}

// WithReconnectInterval overrides mqtt.reconnect.interval.
func WithReconnectInterval(d time.Duration) Option {
	return func(o *clientOptions) { o.interval = d }
}

// New validates cfg, builds the transport and starts the connection supervisor.
//
// The client never blocks waiting for the broker: construction succeeds as
// soon as the configuration is valid, and the first connect attempt runs in
// the background. The supervisor stops when ctx is cancelled or Close is called.
//
// events must not be nil. A nil pointer wrapped in the interface is not
// detected here; see EventHandler.
//
// Returns:
//   - *Client: Running client
//   - error: ErrNilHandler if events is nil, ErrInvalidConfig if the broker
//     host, port, QoS or a WithSubscriptions QoS is invalid
func New(ctx context.Context, cfg config.MQTTConfig, events EventHandler, opts ...Option) (*Client, error) {
	if events == nil {
		return nil, ErrNilHandler
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	o := clientOptions{logger: noopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	for filter, q := range o.subs {
		if q > maxQoS {
			return nil, fmt.Errorf("%w: subscription %q: %w", ErrInvalidConfig, filter, ErrInvalidQoS)
		}
	}

	transport := o.transport
	if transport == nil {
		clientID := resolveClientID(cfg, o.clientID)
		pt := NewPahoTransport(cfg, clientID, events)
		pt.SetLogger(o.logger)
		transport = pt
	}

	interval := o.interval
	if interval <= 0 {
		interval = cfg.ReconnectInterval()
	}

	supervisor := NewSupervisor(transport, interval)
	supervisor.SetLogger(o.logger)
	supervisor.SetMetrics(o.metrics)

	runCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		cfg:           cfg,
		transport:     transport,
		supervisor:    supervisor,
		logger:        o.logger,
		metrics:       o.metrics,
		subscriptions: make(map[string]byte, len(o.subs)),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	for filter, q := range o.subs {
		c.subscriptions[filter] = q
	}
	transport.SetOnConnect(c.restoreSubscriptions)

	go func() {
		defer close(c.done)
		_ = supervisor.Run(runCtx)
	}()

	c.logger.Info("MQTT client started",
		"broker", brokerURL(cfg),
		"client_id", transport.ClientID(),
	)

	return c, nil
}

// resolveClientID picks the explicit id, then the configured id, then a
// generated one.
func resolveClientID(cfg config.MQTTConfig, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cfg.Broker.ClientID != "" {
		return cfg.Broker.ClientID
	}
	return GenerateClientID(cfg.Broker.ClientIDPrefix)
}

// Close stops the supervisor and disconnects from the broker.
//
// Disconnect failures are logged, never returned; the error result exists
// so Client satisfies io.Closer. Calling Close more than once is a no-op.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done

		if err := c.transport.Disconnect(); err != nil {
			if errors.Is(err, ErrNotConnected) {
				c.logger.Debug("close: transport was not connected", "client_id", c.ClientID())
				return
			}
			c.logFailure("close", err)
			return
		}
		c.logger.Info("MQTT client closed", "client_id", c.ClientID())
	})
	return nil
}

// HealthCheck reports whether the client currently holds a broker connection.
//
// Returns:
//   - error: nil if healthy, ErrNotConnected or the context error otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the transport's current connection state.
func (c *Client) IsConnected() bool {
	return c.transport.IsConnected()
}

// ClientID returns the id the client presents to the broker.
func (c *Client) ClientID() string {
	return c.transport.ClientID()
}

// State returns the supervisor's last observed connection state.
func (c *Client) State() ConnectionState {
	return c.supervisor.State()
}

// Status is a point-in-time view of a Client's connection.
type Status struct {
	ClientID          string          `json:"client_id"`
	Broker            string          `json:"broker"`
	Connected         bool            `json:"connected"`
	State             ConnectionState `json:"state"`
	RetryMode         RetryMode       `json:"retry_mode"`
	Attempts          int             `json:"connect_attempts"`
	ReconnectInterval time.Duration   `json:"reconnect_interval_ns"`
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	return Status{
		ClientID:          c.ClientID(),
		Broker:            brokerURL(c.cfg),
		Connected:         c.IsConnected(),
		State:             c.supervisor.State(),
		RetryMode:         c.supervisor.Mode(),
		Attempts:          c.supervisor.Attempts(),
		ReconnectInterval: c.supervisor.Interval(),
	}
}

// restoreSubscriptions re-subscribes to all tracked filters. The transport
// calls it after every connect.
func (c *Client) restoreSubscriptions() {
	filters, qos := c.trackedSubscriptions()
	if len(filters) == 0 {
		return
	}

	if err := c.transport.Subscribe(filters, qos); err != nil {
		c.logFailure("resubscribe", err, "filters", filters)
		return
	}
	c.logger.Info("subscriptions restored", "client_id", c.ClientID(), "filters", filters)
}

// trackedSubscriptions returns the tracked filters in sorted order with
// their QoS levels.
func (c *Client) trackedSubscriptions() ([]string, []byte) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	filters := make([]string, 0, len(c.subscriptions))
	for filter := range c.subscriptions {
		filters = append(filters, filter)
	}
	slices.Sort(filters)

	qos := make([]byte, len(filters))
	for i, filter := range filters {
		qos[i] = c.subscriptions[filter]
	}
	return filters, qos
}

// logFailure records a failed operation that is not returned to the caller.
func (c *Client) logFailure(op string, err error, args ...any) {
	c.metrics.operationError(op)
	attrs := append([]any{"client_id", c.ClientID(), "error", err}, args...)
	c.logger.Error("MQTT "+op+" failed", attrs...)
}
