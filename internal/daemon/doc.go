// Package daemon wires the engine together: it enforces single-instance
// execution, runs the executor, reacts to disc insertion events, and owns
// the scheduled maintenance jobs.
package daemon
