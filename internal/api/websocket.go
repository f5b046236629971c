package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"polybot-server/internal/events"
	"polybot-server/internal/logging"
	"polybot-server/internal/telemetry"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the HTTP layer; the browser's
		// Origin header is not a security boundary for websockets.
		return true
	},
}

var wsLogger = logging.WithComponent("websocket")

// WSClient represents a connected websocket client
type WSClient struct {
	conn      *websocket.Conn
	send      chan []byte
	hub       *WSHub
	userID    string
	closeChan chan struct{}
}

// WSHub manages all websocket clients
type WSHub struct {
	clients     map[*WSClient]bool
	userClients map[string][]*WSClient
	broadcast   chan []byte
	register    chan *WSClient
	unregister  chan *WSClient
	mu          sync.RWMutex
}

// NewWSHub creates a websocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:     make(map[*WSClient]bool),
		userClients: make(map[string][]*WSClient),
		broadcast:   make(chan []byte, 4096),
		register:    make(chan *WSClient),
		unregister:  make(chan *WSClient),
	}
}

// Run processes hub registration and broadcast traffic
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if client.userID != "" {
				h.userClients[client.userID] = append(h.userClients[client.userID], client)
			}
			telemetry.WebsocketConnections.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if client.userID != "" {
					h.removeClientFromUserMap(client)
				}
			}
			telemetry.WebsocketConnections.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full, drop the client
					go func(c *WSClient) {
						h.unregister <- c
					}(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent sends an event to every connected client
func (h *WSHub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		wsLogger.Error("Failed to marshal event", "error", err.Error())
		return
	}

	select {
	case h.broadcast <- data:
	default:
		wsLogger.Warn("Broadcast channel full, dropping message")
	}
}

// SendToUser delivers a payload to one user's connections only
func (h *WSHub) SendToUser(userID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		wsLogger.Error("Failed to marshal payload", "error", err.Error())
		return
	}

	h.mu.RLock()
	clients := h.userClients[userID]
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// GetClientCount returns the number of connected clients
func (h *WSHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// removeClientFromUserMap removes a client from the per-user index.
// Caller must hold the write lock.
func (h *WSHub) removeClientFromUserMap(client *WSClient) {
	clients, ok := h.userClients[client.userID]
	if !ok {
		return
	}
	for i, c := range clients {
		if c == client {
			h.userClients[client.userID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.userClients[client.userID]) == 0 {
		delete(h.userClients, client.userID)
	}
}

// DisconnectUser closes all of a user's connections, used on logout
func (h *WSHub) DisconnectUser(userID string) {
	if userID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.userClients[userID]
	if !ok || len(clients) == 0 {
		return
	}

	for _, client := range clients {
		if _, exists := h.clients[client]; exists {
			delete(h.clients, client)
			close(client.send)
			select {
			case client.closeChan <- struct{}{}:
			default:
			}
		}
	}
	delete(h.userClients, userID)
	telemetry.WebsocketConnections.Set(float64(len(h.clients)))

	wsLogger.Info("Disconnected user websockets", "user_id", userID, "count", len(clients))
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			return
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		// Clients only listen; inbound messages are ignored
	}
}

// Global websocket hub
var wsHub *WSHub

// InitWebSocket starts the hub, mirrors all bus events to connected
// clients, and wires the cross-package broadcast callbacks.
func InitWebSocket(eventBus *events.EventBus) *WSHub {
	wsHub = NewWSHub()
	go wsHub.Run()

	eventBus.SubscribeAll(func(event events.Event) {
		if event.UserID != "" {
			wsHub.SendToUser(event.UserID, event)
			return
		}
		wsHub.BroadcastEvent(event)
	})

	events.SetBroadcastBotStatus(func(_ string, data interface{}) {
		wsHub.BroadcastEvent(events.Event{
			Type:      events.EventBotStatusUpdate,
			Timestamp: time.Now(),
			Data:      map[string]interface{}{"status": data},
		})
	})
	events.SetBroadcastTradeUpdate(func(userID string, data interface{}) {
		wsHub.SendToUser(userID, data)
	})
	events.SetBroadcastSubscription(func(userID string, data interface{}) {
		wsHub.SendToUser(userID, data)
	})

	wsLogger.Info("WebSocket hub initialized")
	return wsHub
}

// DisconnectUserWebSockets closes a user's connections from other
// packages (auth logout path).
func DisconnectUserWebSockets(userID string) {
	if wsHub != nil {
		wsHub.DisconnectUser(userID)
	}
}

// GetWSClientCount returns the number of connected websocket clients
func GetWSClientCount() int {
	if wsHub == nil {
		return 0
	}
	return wsHub.GetClientCount()
}

// handleWebSocket upgrades the connection. The browser WebSocket API
// cannot set an Authorization header, so the access token rides in the
// token query parameter instead.
func (s *Server) handleWebSocket(c *gin.Context) {
	var userID string
	if token := c.Query("token"); token != "" {
		claims, err := s.authService.GetJWTManager().ValidateAccessToken(token)
		if err != nil {
			errorResponse(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token")
			return
		}
		userID = claims.UserID
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wsLogger.Warn("Failed to upgrade connection", "error", err.Error())
		return
	}

	client := &WSClient{
		conn:      conn,
		send:      make(chan []byte, 256),
		hub:       wsHub,
		userID:    userID,
		closeChan: make(chan struct{}),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	welcome := map[string]interface{}{
		"type":      "CONNECTED",
		"timestamp": time.Now(),
	}
	if data, err := json.Marshal(welcome); err == nil {
		select {
		case client.send <- data:
		default:
		}
	}
}
