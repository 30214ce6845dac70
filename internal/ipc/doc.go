// Package ipc exposes daemon control via JSON-RPC over a Unix domain
// socket. The CLI and chat transports are both clients of this surface.
package ipc
