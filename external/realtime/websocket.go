package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/minutagen/internal/realtime"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var ErrConnectionNotFound = errors.New("realtime connection not found")

type inboundMessage struct {
	Event string `json:"event"`
}

// Hub accepts WebSocket clients, assigns each a connection identity and
// forwards their events to the registered handler.
type Hub struct {
	upgrader        websocket.Upgrader
	maxMessageBytes int64

	mu      sync.RWMutex
	conns   map[string]*connection
	handler realtime.Handler
	closed  bool
}

type connection struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func NewHub(allowedOrigin string, maxMessageBytes int64) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(allowedOrigin, r.Header.Get("Origin"))
			},
		},
		maxMessageBytes: maxMessageBytes,
		conns:           make(map[string]*connection),
	}
}

func originAllowed(allowed, origin string) bool {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" || allowed == "*" || origin == "" {
		return true
	}
	return strings.EqualFold(strings.TrimRight(origin, "/"), strings.TrimRight(allowed, "/"))
}

func (h *Hub) RegisterHandler(handler realtime.Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = handler
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	handler, closed := h.handler, h.closed
	h.mu.RUnlock()
	if handler == nil || closed {
		http.Error(w, "realtime transport unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}
	c := &connection{id: uuid.NewString(), ws: ws}
	if !h.add(c) {
		_ = ws.Close()
		return
	}
	slog.Info("realtime client connected", "connection_id", c.id, "remote_addr", r.RemoteAddr)

	done := make(chan struct{})
	go h.pingLoop(c, done)
	defer func() {
		close(done)
		h.remove(c.id)
		_ = ws.Close()
		handler.HandleDisconnect(c.id)
		slog.Info("realtime client disconnected", "connection_id", c.id)
	}()
	h.readLoop(c, handler)
}

func (h *Hub) readLoop(c *connection, handler realtime.Handler) {
	if h.maxMessageBytes > 0 {
		c.ws.SetReadLimit(h.maxMessageBytes)
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				slog.Warn("realtime read loop ended unexpectedly", "connection_id", c.id, "error", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		switch messageType {
		case websocket.BinaryMessage:
			handler.HandleAudioChunk(c.id, data)
		case websocket.TextMessage:
			dispatchText(c.id, handler, data)
		}
	}
}

func dispatchText(connectionID string, handler realtime.Handler, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("ignoring malformed realtime message", "connection_id", connectionID, "error", err)
		return
	}
	switch msg.Event {
	case realtime.EventStartTranscription:
		handler.HandleStart(connectionID)
	case realtime.EventStopTranscription:
		handler.HandleStop(connectionID)
	default:
		slog.Warn("ignoring unknown realtime event", "connection_id", connectionID, "event", msg.Event)
	}
}

func (h *Hub) pingLoop(c *connection, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				slog.Debug("realtime ping failed", "connection_id", c.id, "error", err)
				return
			}
		}
	}
}

func (h *Hub) Send(connectionID string, event realtime.Event) error {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Name, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close stops accepting clients and closes every open connection. Each read
// loop then reports its disconnect to the handler.
func (h *Hub) Close() int {
	h.mu.Lock()
	h.closed = true
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"), time.Now().Add(writeWait))
		_ = c.ws.Close()
	}
	return len(conns)
}

func (h *Hub) add(c *connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c.id] = c
	return true
}

func (h *Hub) remove(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connectionID)
}
