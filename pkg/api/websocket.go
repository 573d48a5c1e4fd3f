package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsReadWindow   = 60 * time.Second
	wsPingEvery    = 54 * time.Second
	wsWriteTimeout = 10 * time.Second
	// Per-subscriber backlog; updates beyond it are dropped.
	wsBacklog = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is applied on the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks dashboard connections watching a run and fans tick updates out
// to whoever subscribed to the matching channel.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	join  chan *subscriber
	leave chan *subscriber
	quit  chan struct{}
	once  sync.Once

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		join:   make(chan *subscriber),
		leave:  make(chan *subscriber),
		quit:   make(chan struct{}),
		logger: logger,
	}
}

// Run owns membership changes until Stop. Calling Run after Stop returns
// immediately.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for sub := range h.subs {
				h.dropLocked(sub)
			}
			h.mu.Unlock()
			return

		case sub := <-h.join:
			h.mu.Lock()
			h.subs[sub] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("ws_client_connected", zap.String("client", sub.addr), zap.Int("total", n))

		case sub := <-h.leave:
			h.mu.Lock()
			h.dropLocked(sub)
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.Debug("ws_client_disconnected", zap.String("client", sub.addr), zap.Int("total", n))
		}
	}
}

func (h *Hub) dropLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.out)
	}
}

func (h *Hub) Stop() { h.once.Do(func() { close(h.quit) }) }

// ClientCount reports connected dashboards; served in the status snapshot.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// BroadcastToChannel never blocks: a subscriber with a full backlog misses
// this update.
func (h *Hub) BroadcastToChannel(channel string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn("ws_marshal_failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if !sub.wants(channel) {
			continue
		}
		select {
		case sub.out <- payload:
		default:
		}
	}
}

// subscriber is one dashboard connection.
type subscriber struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte
	addr string

	mu       sync.RWMutex
	channels map[string]bool
}

func (c *subscriber) wants(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *subscriber) apply(req WSSubscribeRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range req.Channels {
		switch req.Op {
		case "subscribe":
			c.channels[ch] = true
		case "unsubscribe":
			delete(c.channels, ch)
		}
	}
}

// readLoop applies subscribe/unsubscribe requests until the peer goes away.
func (c *subscriber) readLoop() {
	defer func() {
		select {
		case c.hub.leave <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(wsReadWindow)) }
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("ws_read_failed", zap.Error(err))
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.hub.logger.Debug("ws_invalid_message", zap.Error(err))
			continue
		}
		if req.Op != "subscribe" && req.Op != "unsubscribe" {
			c.hub.logger.Debug("ws_unknown_op", zap.String("op", req.Op))
			continue
		}
		c.apply(req)
	}
}

// writeLoop forwards queued updates and keeps the connection alive with pings.
func (c *subscriber) writeLoop() {
	ping := time.NewTicker(wsPingEvery)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws_upgrade_failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		hub:      s.hub,
		conn:     conn,
		out:      make(chan []byte, wsBacklog),
		addr:     conn.RemoteAddr().String(),
		channels: make(map[string]bool),
	}

	select {
	case s.hub.join <- sub:
	case <-s.hub.quit:
		conn.Close()
		return
	}

	go sub.writeLoop()
	go sub.readLoop()
}
