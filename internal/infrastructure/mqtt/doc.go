// Package mqtt provides a managed MQTT broker connection for brokerlink.
//
// This package manages:
//   - One logical connection per Client, kept alive by a background Supervisor
//   - Reconnection at a fixed interval, retried without limit
//   - Subscriptions restored after every reconnect (sessions are clean)
//   - Topic normalization (every published topic starts with "/")
//   - Optional TLS with an explicit insecure trust mode
//   - Prometheus counters for connect attempts and failed operations
//
// # Architecture
//
//	caller ──► Client ──► Transport (paho) ◄── Supervisor (goroutine)
//	                          │
//	                          └──► EventHandler (messages, delivery, lost connection)
//
// The Supervisor is the only goroutine that issues connect attempts. It
// checks the transport, issues at most one attempt at a time and waits for
// that attempt's outcome before doing anything else. The first check runs
// immediately; every later check waits reconnect.interval (10s by default).
// With mqtt.reconnect.automatic, paho also re-establishes a dropped
// connection by itself; the supervisor waits that out and reports the
// client as connecting until paho's OnConnect handler fires.
//
// # Error Policy
//
// Construction fails fast on a nil EventHandler or an invalid broker host,
// port or QoS. Connection errors never reach the caller; they are logged and
// retried. Publish, Subscribe and Close log and swallow failures.
// Unsubscribe returns them.
//
// # Security Considerations
//
//   - mqtt.broker.tls selects ssl:// with TLS 1.2 or later
//   - mqtt.broker.insecure_skip_verify accepts any certificate and hostname;
//     use only against brokers on a trusted network
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.New(ctx, cfg.MQTT, mqtt.EventFuncs{
//	    OnMessage: func(topic string, payload []byte) {
//	        log.Printf("Received: %s = %s", topic, payload)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.SubscribeOne("/devices/+/state", 1)
//	client.PublishDefault("devices/42/command", `{"on":true}`)
package mqtt
