// Package logging provides structured logging for brokerlink.
//
// It wraps Go's standard log/slog package so every component logs with the
// same handler, level and default fields.
//
// Logging is configured via the logging section of the config file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("broker connected", "client_id", id)
//
// Never log broker passwords.
package logging
