package mqtt

import "strings"

// TopicSeparator is the MQTT topic level separator. Every topic published
// through Client starts with it.
const TopicSeparator = "/"

// NormalizeTopic prefixes topic with TopicSeparator unless it already starts
// with one. It is idempotent.
//
// Example: "devices/42/state" becomes "/devices/42/state".
func NormalizeTopic(topic string) string {
	if strings.HasPrefix(topic, TopicSeparator) {
		return topic
	}
	return TopicSeparator + topic
}
