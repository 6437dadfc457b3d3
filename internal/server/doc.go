// Package server hosts the HTTP surface of the gateway: the websocket
// signaling endpoint at /ws, liveness and readiness probes, and a status
// route exposing hub counters.
package server
