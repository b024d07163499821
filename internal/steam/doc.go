// Package steam contains the per-account session layer: the session
// state machine, local guard-code derivation, and the WebSocket client for
// the protocol gateway that performs the wire-level handshake.
package steam
