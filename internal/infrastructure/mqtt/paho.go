package mqtt

import (
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/brokerlink/internal/infrastructure/config"
)

// PahoTransport implements Transport on top of paho.mqtt.golang.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type PahoTransport struct {
	client   pahomqtt.Client
	options  *pahomqtt.ClientOptions
	clientID string
	events   EventHandler

	// connected is set by the OnConnect handler and cleared when the
	// connection is lost. paho's own IsConnected stays true while it
	// reconnects, so this flag is the authoritative state.
	connected bool
	connMu    sync.RWMutex

	onConnect  func()
	callbackMu sync.RWMutex

	// opTimeout bounds every publish/subscribe/unsubscribe token wait.
	opTimeout time.Duration

	logger   Logger
	loggerMu sync.RWMutex
}

// NewPahoTransport builds a paho client for cfg without connecting it.
//
// Incoming messages and lost connections are forwarded to events.
func NewPahoTransport(cfg config.MQTTConfig, clientID string, events EventHandler) *PahoTransport {
	t := &PahoTransport{
		options:   buildClientOptions(cfg, clientID),
		clientID:  clientID,
		events:    events,
		opTimeout: defaultOperationTimeout,
		logger:    noopLogger{},
	}

	t.options.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		t.deliverMessage(msg.Topic(), msg.Payload())
	})

	t.options.SetOnConnectHandler(func(_ pahomqtt.Client) {
		t.handleConnect()
	})

	t.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		t.handleDisconnect(err)
	})

	t.options.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		t.getLogger().Info("MQTT transport reconnecting", "client_id", t.clientID)
	})

	t.client = pahomqtt.NewClient(t.options)
	return t
}

// SetLogger sets a logger for transport-level events and handler panics.
func (t *PahoTransport) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

func (t *PahoTransport) getLogger() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

// SetOnConnect implements Transport. fn runs on a paho goroutine after
// every successful connect, including automatic reconnects.
func (t *PahoTransport) SetOnConnect(fn func()) {
	t.callbackMu.Lock()
	t.onConnect = fn
	t.callbackMu.Unlock()
}

// handleConnect is called by paho when a connection is established.
func (t *PahoTransport) handleConnect() {
	t.setConnected(true)
	t.getLogger().Debug("MQTT connection established", "client_id", t.clientID)

	t.callbackMu.RLock()
	callback := t.onConnect
	t.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called by paho when an established connection drops.
func (t *PahoTransport) handleDisconnect(err error) {
	t.setConnected(false)
	t.getLogger().Warn("MQTT connection lost", "client_id", t.clientID, "error", err)

	defer t.recoverHandler("connection_lost", "")
	t.events.ConnectionLost(err)
}

func (t *PahoTransport) setConnected(v bool) {
	t.connMu.Lock()
	t.connected = v
	t.connMu.Unlock()
}

// deliverMessage hands a message to the event handler with panic recovery.
func (t *PahoTransport) deliverMessage(topic string, payload []byte) {
	defer t.recoverHandler("message_arrived", topic)
	t.events.MessageArrived(topic, payload)
}

// deliveryComplete reports a finished publish with panic recovery.
func (t *PahoTransport) deliveryComplete(topic string) {
	defer t.recoverHandler("delivery_complete", topic)
	t.events.DeliveryComplete(topic)
}

// recoverHandler logs a panic raised by the event handler. Must be deferred.
func (t *PahoTransport) recoverHandler(event, topic string) {
	if r := recover(); r != nil {
		t.getLogger().Error("MQTT handler panic recovered",
			"event", event,
			"topic", topic,
			"panic", r,
		)
	}
}

// Connect implements Transport.
//
// paho reports every handshake failure through the connect token. The
// synchronous failures are ErrAlreadyConnected, when a connection is open,
// and ErrReconnecting, when paho's automatic reconnect owns the connection.
func (t *PahoTransport) Connect(onComplete func(err error)) error {
	if t.client.IsConnectionOpen() {
		return ErrAlreadyConnected
	}
	// paho.IsConnected is also true while it reconnects by itself.
	if t.client.IsConnected() {
		return ErrReconnecting
	}

	token := t.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			onComplete(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
			return
		}
		// paho completes the token without connecting when its reconnect
		// loop started after the check above.
		if !t.client.IsConnectionOpen() {
			onComplete(ErrReconnecting)
			return
		}
		// The OnConnect handler runs asynchronously and may not have
		// executed yet.
		t.setConnected(true)
		onComplete(nil)
	}()

	return nil
}

// IsConnected implements Transport. It is false from the moment a
// connection is lost until paho has re-established it.
func (t *PahoTransport) IsConnected() bool {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.connected && t.client.IsConnectionOpen()
}

// Publish implements Transport. It waits for the broker acknowledgement
// required by qos, then reports DeliveryComplete.
func (t *PahoTransport) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := t.client.Publish(topic, qos, retained, payload)
	if err := t.wait(token, ErrPublishFailed); err != nil {
		return err
	}

	t.deliveryComplete(topic)
	return nil
}

// Subscribe implements Transport. Messages are routed to the default
// handler, which forwards them to EventHandler.MessageArrived.
func (t *PahoTransport) Subscribe(filters []string, qos []byte) error {
	if len(filters) != len(qos) {
		return ErrMismatchedQoS
	}
	if !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	subs := make(map[string]byte, len(filters))
	for i, filter := range filters {
		subs[filter] = qos[i]
	}

	token := t.client.SubscribeMultiple(subs, nil)
	return t.wait(token, ErrSubscribeFailed)
}

// Unsubscribe implements Transport.
func (t *PahoTransport) Unsubscribe(filters ...string) error {
	if !t.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	token := t.client.Unsubscribe(filters...)
	return t.wait(token, ErrUnsubscribeFailed)
}

// Disconnect implements Transport. It waits up to one second for pending
// work before closing the connection. A reconnect loop in progress is
// stopped as well.
func (t *PahoTransport) Disconnect() error {
	if !t.client.IsConnected() {
		return ErrNotConnected
	}
	t.setConnected(false)
	t.client.Disconnect(defaultDisconnectQuiesce)
	return nil
}

// ClientID implements Transport.
func (t *PahoTransport) ClientID() string {
	return t.clientID
}

// wait blocks on token for at most opTimeout and wraps failures in kind.
func (t *PahoTransport) wait(token pahomqtt.Token, kind error) error {
	if !token.WaitTimeout(t.opTimeout) {
		return fmt.Errorf("%w: %w after %v", kind, ErrTimeout, t.opTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}
