// Package config loads runtime configuration for the Digital Mira CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or -config. Files ending in
//     .yaml or .yml are decoded as YAML, anything else as JSON.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-d string   path of the durable storage database
//	-s string   session signing secret
//	-l string   log level (debug, info, warn, error)
//	-f string   log format (text, json, zap)
//	-p int      minimum password length at registration
//	-w int      storage watch debounce (milliseconds)
//
// # File schema
//
//	{
//	  "database_path": "mira.db",
//	  "session_secret": "",
//	  "log_level": "info",
//	  "log_format": "text",
//	  "min_password_length": 8,
//	  "watch_debounce": "250ms"
//	}
//
// An empty session secret makes the application generate one and keep it in
// the durable scope.
package config
