// Package api provides the HTTP process boundary for the duel server: a
// liveness probe, static asset serving for the client, and the /ws mount
// point for the WebSocket transport.
//
// The api package implements:
//   - GET /healthz - liveness probe
//   - GET /ws - WebSocket upgrade (delegated to transport/ws.Hub)
//   - Static file serving for everything else
//
// Request/Response Format:
//
// /healthz returns JSON:
//
//	{"status": "ok"}
//
// Usage:
//
//	hub := ws.NewHub(gateway)
//	server := api.NewServer(hub, "./static")
//	http.ListenAndServe(addr, server)
package api
