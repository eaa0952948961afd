// Package api implements brokerlink's operational HTTP endpoint.
//
// This package provides:
//   - Prometheus exposition at /metrics
//   - A liveness probe at /healthz that reflects the broker connection
//   - JSON status of the connection supervisor at /api/v1/status
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The server only reads. It never publishes or subscribes on behalf of an
// HTTP caller; the MQTT client is the sole owner of the broker connection.
//
// # Graceful Degradation
//
// A missing broker connection does not stop the server. /healthz and
// /api/v1/health return 503 until the supervisor reconnects, while /metrics
// and /api/v1/status keep answering.
package api
