// Package botfacade is the command surface exposed to chat transports and
// the CLI. It validates requests against live drive and disc state, admits
// jobs into the queue, and renders results for humans.
package botfacade
