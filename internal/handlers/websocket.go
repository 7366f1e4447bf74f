package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the frame pushed to websocket clients.
type WSMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// WebSocketHandler broadcasts job lifecycle events to connected clients. It
// subscribes to the event service at construction; a throttle interval in
// config rate-limits broadcasts so a burst of job completions cannot flood
// slow clients.
type WebSocketHandler struct {
	logger      arbor.ILogger
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex
	throttler   *rate.Limiter
}

// NewWebSocketHandler creates the handler and subscribes it to job events.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:      logger,
		clients:     make(map[*websocket.Conn]bool),
		clientMutex: make(map[*websocket.Conn]*sync.Mutex),
	}

	if config != nil && config.ThrottleInterval != "" {
		if interval, err := time.ParseDuration(config.ThrottleInterval); err == nil {
			h.throttler = rate.NewLimiter(rate.Every(interval), 1)
		} else {
			logger.Warn().
				Err(err).
				Str("interval", config.ThrottleInterval).
				Msg("Failed to parse throttle interval - throttling disabled")
		}
	}

	if eventService != nil {
		eventService.Subscribe(interfaces.EventJobSubmitted, h.handleJobEvent("job_submitted"))
		eventService.Subscribe(interfaces.EventJobCompleted, h.handleJobEvent("job_completed"))
		eventService.Subscribe(interfaces.EventJobFailed, h.handleJobEvent("job_failed"))
	}

	return h
}

// Handler upgrades the connection and registers the client.
// GET /ws
func (h *WebSocketHandler) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info().Int("clients", count).Msg("WebSocket client connected")

	// Reader loop exists only to detect disconnect; clients never send.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	delete(h.clientMutex, conn)
	count := len(h.clients)
	h.mu.Unlock()

	conn.Close()
	h.logger.Info().Int("clients", count).Msg("WebSocket client disconnected")
}

func (h *WebSocketHandler) handleJobEvent(msgType string) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		if h.throttler != nil && !h.throttler.Allow() {
			return nil
		}
		h.Broadcast(WSMessage{Type: msgType, Payload: event.Payload})
		return nil
	}
}

// Broadcast sends a message to every connected client. Write errors drop the
// client rather than failing the broadcast.
func (h *WebSocketHandler) Broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to marshal websocket message")
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range conns {
		mutexes[i].Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutexes[i].Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send to websocket client")
			h.removeClient(conn)
		}
	}
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.clientMutex = make(map[*websocket.Conn]*sync.Mutex)
}
