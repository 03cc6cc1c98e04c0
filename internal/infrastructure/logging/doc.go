// Package logging provides structured logging for ScopeLink Core.
//
// It wraps log/slog so every component logs with the same handler, level
// and default fields (service, version, and optionally component).
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	conn := logger.Component("connection")
//	conn.Info("connected", "device", key)
//
// Never log backend tokens or JWT secrets.
package logging
