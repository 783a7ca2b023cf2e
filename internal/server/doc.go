// Package server implements the websocket server side: a registry that gives
// every accepted connection a stable identity and liveness flag, and a
// heartbeat monitor that probes registered connections on a fixed interval
// and evicts the ones that missed the previous probe.
package server
