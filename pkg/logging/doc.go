// Package logging provides the structured logging system for authkit with
// unified log handling and level filtering.
//
// This package is a thin layer over Go's standard slog package. Every entry
// carries a timestamp, level, subsystem identifier, message, and optional
// error. Subsystems categorize entries (Bootstrap, Config, Flow, Token,
// Device, Discovery) so log output can be filtered per concern.
//
// Initialization:
//
//	import "authkit/pkg/logging"
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Bootstrap", "Starting authorization flow")
//	logging.Debug("Config", "Loaded configuration from %s", configPath)
//	logging.Error("Token", err, "Token exchange failed")
//
// Secrets are never logged. Callers log derived facts such as lengths or
// presence flags, never token or secret values themselves.
package logging
