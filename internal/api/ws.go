package api

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"bitodash/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS middleware on the outer mux
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Hub fans order-book snapshots out to connected browser clients. Each
// client is subscribed to exactly one pair channel, taken from the URL.
type Hub struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.RWMutex
}

// NewHub creates an empty hub. Run must be started on its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
}

// Run owns the client set. It exits when the register channel is closed,
// which never happens in normal operation.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("WS client connected", slog.String("client", client.id), slog.String("pair", client.pair), slog.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			slog.Info("WS client disconnected", slog.String("client", client.id), slog.Int("total", total))
		}
	}
}

// BroadcastSnapshot pushes a snapshot to every client watching its pair.
// Slow clients are skipped, never blocked on.
func (h *Hub) BroadcastSnapshot(snap domain.OrderBookSnapshot) {
	message, err := json.Marshal(snap)
	if err != nil {
		slog.Warn("Snapshot marshal failed", slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !strings.EqualFold(client.pair, snap.Pair) {
			continue
		}
		select {
		case client.send <- message:
		default:
		}
	}
}

// ClientCount reports connected clients, used by the health route.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
	pair string
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Inbound messages are ignored; the read loop only detects closure.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("WS read error", slog.String("client", c.id), slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
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

// BookStream is the upstream feed behind the hub: the order-book worker.
type BookStream interface {
	SetPair(pair string)
	Snapshot() (domain.OrderBookSnapshot, bool)
}

// StreamHandler upgrades /ws/orderbook/{pair} connections and points the
// upstream worker at the requested pair.
type StreamHandler struct {
	hub    *Hub
	stream BookStream
}

// NewStreamHandler wires the order-book streaming route.
func NewStreamHandler(hub *Hub, stream BookStream) *StreamHandler {
	return &StreamHandler{hub: hub, stream: stream}
}

// ServeHTTP handles the upgrade and client lifecycle.
func (s *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pair := strings.ToLower(mux.Vars(r)["pair"])
	if pair == "" {
		http.Error(w, "pair required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WS upgrade failed", slog.String("error", err.Error()))
		return
	}

	// Retarget the worker. Connections for a different pair than the
	// current one switch the shared feed; the worker discards frames from
	// the torn-down session itself.
	s.stream.SetPair(pair)

	client := &wsClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 64),
		id:   uuid.NewString(),
		pair: pair,
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()

	// Seed the new client with the last snapshot so it does not wait for
	// the next upstream frame.
	if snap, ok := s.stream.Snapshot(); ok && strings.EqualFold(snap.Pair, pair) {
		if message, err := json.Marshal(snap); err == nil {
			select {
			case client.send <- message:
			default:
			}
		}
	}
}
