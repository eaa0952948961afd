package mqtt

import (
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends payload to topic. A topic without a leading "/" gets one.
//
// Publishing is fire-and-forget: failures (invalid QoS, oversized payload,
// no connection, broker rejection) are logged and counted, not returned.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "devices/42/state")
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) {
	topic = NormalizeTopic(topic)
	if err := c.publish(topic, payload, qos, retained); err != nil {
		c.logFailure("publish", err, "topic", topic, "qos", qos)
	}
}

func (c *Client) publish(topic string, payload []byte, qos byte, retained bool) error {
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return c.transport.Publish(topic, payload, qos, retained)
}

// PublishString is Publish with a string payload.
func (c *Client) PublishString(topic, payload string, qos byte, retained bool) {
	c.Publish(topic, []byte(payload), qos, retained)
}

// PublishDefault publishes a non-retained string payload at the configured
// default QoS.
func (c *Client) PublishDefault(topic, payload string) {
	c.Publish(topic, []byte(payload), byte(c.cfg.QoS), false)
}
