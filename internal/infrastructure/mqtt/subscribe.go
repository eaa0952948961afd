package mqtt

import (
	"fmt"
)

// Subscribe registers filters[i] at qos[i]. Incoming messages are delivered
// to the EventHandler passed to New.
//
// Filters are sent as given; MQTT wildcards (+, #) and $-prefixed system
// topics are therefore usable. Failures are logged and counted, not returned.
// Accepted filters are restored after every reconnect.
//
// Example:
//
//	client.Subscribe([]string{"/devices/+/state", "/alerts/#"}, []byte{1, 0})
func (c *Client) Subscribe(filters []string, qos []byte) {
	if err := c.subscribe(filters, qos); err != nil {
		c.logFailure("subscribe", err, "filters", filters)
	}
}

func (c *Client) subscribe(filters []string, qos []byte) error {
	if len(filters) != len(qos) {
		return fmt.Errorf("%w: %d filters, %d QoS levels", ErrMismatchedQoS, len(filters), len(qos))
	}
	if len(filters) == 0 {
		return fmt.Errorf("%w: no topic filters", ErrSubscribeFailed)
	}
	for _, q := range qos {
		if q > maxQoS {
			return ErrInvalidQoS
		}
	}
	if err := c.transport.Subscribe(filters, qos); err != nil {
		return err
	}

	c.subMu.Lock()
	for i, filter := range filters {
		c.subscriptions[filter] = qos[i]
	}
	c.subMu.Unlock()
	return nil
}

// SubscribeOne subscribes to a single filter.
func (c *Client) SubscribeOne(filter string, qos byte) {
	c.Subscribe([]string{filter}, []byte{qos})
}

// Unsubscribe removes subscriptions for filters. They are no longer
// restored on reconnect, even if the broker call fails.
//
// Unlike Publish and Subscribe, a failure is returned to the caller as
// reported by the transport, after being logged.
func (c *Client) Unsubscribe(filters ...string) error {
	c.subMu.Lock()
	for _, filter := range filters {
		delete(c.subscriptions, filter)
	}
	c.subMu.Unlock()

	if err := c.transport.Unsubscribe(filters...); err != nil {
		c.logFailure("unsubscribe", err, "filters", filters)
		return err
	}
	return nil
}
