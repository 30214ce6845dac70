// Package logging wires slog handlers, shared field names, and log retention
// for the daemon and CLI.
package logging
