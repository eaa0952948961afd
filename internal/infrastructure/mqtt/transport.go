package mqtt

// Transport is the protocol client capability the Client and Supervisor drive.
//
// PahoTransport is the production implementation. Implementations must be
// safe for concurrent use: the supervisor goroutine calls Connect and
// IsConnected while callers publish and subscribe.
type Transport interface {
	// Connect starts a connection attempt. A non-nil return is a synchronous
	// failure and onComplete is never called. Otherwise onComplete is called
	// exactly once with the outcome (nil on success).
	Connect(onComplete func(err error)) error

	// IsConnected reports whether the transport currently holds a connection.
	// It is false while an automatic reconnect is in progress.
	IsConnected() bool

	// SetOnConnect registers fn to run each time a connection is
	// established, including reconnects the transport performs on its own.
	SetOnConnect(fn func())

	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers filters[i] at qos[i]. Both slices have equal length.
	Subscribe(filters []string, qos []byte) error

	Unsubscribe(filters ...string) error
	Disconnect() error
	ClientID() string
}

// EventHandler receives broker events. It must be supplied to New.
//
// Methods are invoked from transport goroutines and should not block for
// extended periods. A panic in any method is recovered and logged.
//
// New rejects a nil interface but cannot see a nil pointer stored in one;
// such a handler panics on its first event and every event is then dropped.
// EventFuncs is a value type and is always safe.
type EventHandler interface {
	// ConnectionLost is called when an established connection drops.
	ConnectionLost(err error)

	// MessageArrived is called for every message received on a subscription.
	MessageArrived(topic string, payload []byte)

	// DeliveryComplete is called once a published message has been handed
	// off to the broker at the requested QoS.
	DeliveryComplete(topic string)
}

// EventFuncs adapts plain functions to EventHandler. Nil fields are ignored.
type EventFuncs struct {
	OnConnectionLost   func(err error)
	OnMessage          func(topic string, payload []byte)
	OnDeliveryComplete func(topic string)
}

// ConnectionLost implements EventHandler.
func (f EventFuncs) ConnectionLost(err error) {
	if f.OnConnectionLost != nil {
		f.OnConnectionLost(err)
	}
}

// MessageArrived implements EventHandler.
func (f EventFuncs) MessageArrived(topic string, payload []byte) {
	if f.OnMessage != nil {
		f.OnMessage(topic, payload)
	}
}

// DeliveryComplete implements EventHandler.
func (f EventFuncs) DeliveryComplete(topic string) {
	if f.OnDeliveryComplete != nil {
		f.OnDeliveryComplete(topic)
	}
}

// Logger defines the logging interface used by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
