package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// WebSocketHandler is the subset of transport/ws.Hub the api package needs:
// an http.HandlerFunc-shaped upgrade endpoint.
type WebSocketHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// Server is the HTTP process boundary: health check, static client assets,
// and the WebSocket upgrade mount.
type Server struct {
	hub       WebSocketHandler
	staticDir string
	router    *mux.Router
}

// NewServer builds a Server serving the client out of staticDir and
// upgrading WebSocket connections through hub.
func NewServer(hub WebSocketHandler, staticDir string) *Server {
	s := &Server{
		hub:       hub,
		staticDir: staticDir,
		router:    mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.hub.ServeWS)
	s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(s.staticDir)))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondJSON writes data as a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
