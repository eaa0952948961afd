package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrAlreadyConnected is returned by Transport.Connect when a network
	// connection is already open. The supervisor tolerates it.
	ErrAlreadyConnected = errors.New("mqtt: client already connected")

	// ErrReconnecting is returned by Transport.Connect when the transport is
	// already re-establishing a lost connection on its own.
	ErrReconnecting = errors.New("mqtt: transport is reconnecting")

	// ErrConnectionFailed is returned when a connect attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe operation fails.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrMismatchedQoS is returned when a subscribe call passes a different
	// number of QoS levels than topic filters.
	ErrMismatchedQoS = errors.New("mqtt: topic filters and QoS levels differ in length")

	// ErrInvalidConfig is returned by New when the broker settings are unusable.
	ErrInvalidConfig = errors.New("mqtt: invalid configuration")

	// ErrNilHandler is returned by New when no event handler is supplied.
	ErrNilHandler = errors.New("mqtt: event handler must not be nil")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
