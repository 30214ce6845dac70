// Command ripcord is the control CLI for the ripcord daemon. It talks to
// ripcordd over the daemon's Unix socket.
package main
