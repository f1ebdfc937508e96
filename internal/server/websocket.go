package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub manages websocket connections for live pipeline updates. It satisfies
// the engine's Broadcaster interface.
type Hub struct {
	connections map[*websocket.Conn]bool
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
}

// WSMessage is the envelope for every websocket frame
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewHub creates a websocket hub
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from localhost for development
				return true
			},
		},
	}
}

// HandleConnection upgrades the request and serves the client until it
// disconnects
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %s", err.Error())
		return
	}
	defer conn.Close()

	log.Println("WebSocket client connected")

	h.mutex.Lock()
	h.connections[conn] = true
	h.mutex.Unlock()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %s", err.Error())
			}
			break
		}

		var data map[string]interface{}
		if err := json.Unmarshal(message, &data); err != nil {
			log.Printf("Failed to parse message: %s", err.Error())
			continue
		}

		msgType, ok := data["type"].(string)
		if !ok {
			continue
		}

		switch msgType {
		case "ping":
			h.sendMessage(conn, WSMessage{
				Type:      "pong",
				Timestamp: time.Now(),
				Data:      map[string]interface{}{"status": "ok"},
			})
		}
	}

	log.Println("WebSocket client disconnected")

	h.mutex.Lock()
	delete(h.connections, conn)
	h.mutex.Unlock()
}

// Broadcast sends a message to every connected client
func (h *Hub) Broadcast(msgType string, data interface{}) {
	h.mutex.RLock()
	connections := make([]*websocket.Conn, 0, len(h.connections))
	for conn := range h.connections {
		connections = append(connections, conn)
	}
	h.mutex.RUnlock()

	message := WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, conn := range connections {
		h.sendMessage(conn, message)
	}
}

// sendMessage writes one frame, dropping the connection on failure
func (h *Hub) sendMessage(conn *websocket.Conn, message WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal WebSocket message: %v", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("Failed to send WebSocket message: %v", err)
		h.mutex.Lock()
		delete(h.connections, conn)
		h.mutex.Unlock()
	}
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.connections)
}
