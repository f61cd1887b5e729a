// Package ws provides the WebSocket transport for duel sessions.
//
// The package implements:
//   - One connection per client, each pumped by its own read/write goroutines
//   - A single upgrade endpoint; clients need no pre-existing lobby to connect
//   - JSON-encoded typed envelopes (see internal/protocol) in both directions
//   - Disconnection routed into the lobby registry's reconnect handling
//
// Architecture:
//
// Hub tracks every live Client by connection id and hands inbound
// envelopes to a Router supplied at construction. There is no broadcast
// fan-out at this layer: outbound delivery is always addressed to one
// connection id, resolved upstream by the lobby registry.
//
// Usage:
//
//	hub := ws.NewHub(router)
//	http.HandleFunc("/ws", hub.ServeWS)
//
// Connection lifecycle:
//
//  1. Client connects; Hub assigns it a connection id and registers it.
//  2. readPump decodes inbound envelopes and calls Router.Handle.
//  3. writePump drains the client's send channel onto the socket, with
//     periodic pings to detect a dead peer.
//  4. On disconnect, the connection is unregistered from the Hub and then
//     Router.Disconnect is called.
package ws
