// Package config loads, normalizes, and validates the TOML configuration for
// the daemon and CLI.
package config
