package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rpsduel/server/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Router dispatches a decoded inbound envelope for connID, and is notified
// when a connection drops so reconnect bookkeeping can be opened.
type Router interface {
	Handle(connID string, env protocol.Envelope)
	Disconnect(connID string)
}

// Client is one live WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID string
}

// Hub tracks every live Client by connection id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	router  Router
}

// NewHub builds a Hub that dispatches inbound events through router.
func NewHub(router Router) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		router:  router,
	}
}

// SendTo implements lobby.Notifier: it marshals payload under the given
// event type and writes it to connID's send channel, if still connected.
func (h *Hub) SendTo(connID, eventType string, payload interface{}) {
	env, err := protocol.Encode(eventType, payload)
	if err != nil {
		log.Printf("ws: encoding %s for %s: %v", eventType, connID, err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("ws: marshaling envelope for %s: %v", connID, err)
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- data:
	default:
		log.Printf("ws: send buffer full for %s, dropping connection", connID)
		h.removeClient(client)
	}
}

// ServeWS upgrades the request and registers a new Client. No pre-existing
// lobby is required; the client's first inbound event (createLobby or
// joinLobby) establishes its lobby association.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		connID: uuid.NewString(),
	}

	h.mu.Lock()
	h.clients[client.connID] = client
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if existing, ok := h.clients[c.connID]; ok && existing == c {
		delete(h.clients, c.connID)
		close(c.send)
	}
	h.mu.Unlock()
	h.router.Disconnect(c.connID)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error on %s: %v", c.connID, err)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("ws: malformed envelope from %s: %v", c.connID, err)
			continue
		}
		c.hub.router.Handle(c.connID, env)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
