// Package display serves the timer to display boards over websockets.
//
// Each board receives the current snapshot as soon as it connects, then every
// event the timer emits. Boards may send control commands using the same
// envelope.
package display

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sweeney/sandglass/internal/cycle"
	"github.com/sweeney/sandglass/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Controller is the part of the timer a display board can drive.
type Controller interface {
	Apply(cmd cycle.Command)
	Snapshot() cycle.Snapshot
}

// Hub tracks connected boards and fans timer events out to them.
type Hub struct {
	ctrl     Controller
	enc      *wire.Encoder
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	onCount func(int)
}

type client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	logger *log.Logger
}

// NewHub creates a Hub. A nil logger discards output.
func NewHub(ctrl Controller, enc *wire.Encoder, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Hub{
		ctrl:    ctrl,
		enc:     enc,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// OnClientCount registers a callback invoked with the number of connected
// boards whenever it changes.
func (h *Hub) OnClientCount(fn func(int)) {
	h.mu.Lock()
	h.onCount = fn
	h.mu.Unlock()
}

// Clients returns the number of connected boards.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request to a websocket and serves one board.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	c.logger = h.logger.With("client", c.id)

	// The snapshot is queued before registration so it precedes any broadcast.
	if msg, err := h.enc.Snapshot(h.ctrl.Snapshot()); err == nil {
		c.send <- msg
	} else {
		c.logger.Error("encode snapshot", "err", err)
	}
	h.add(c)
	c.logger.Debug("board connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	go h.readPump(c)
}

// Broadcast sends an event to every board. Boards whose queue is full are
// disconnected.
func (h *Hub) Broadcast(ev cycle.Event) {
	msg, err := h.enc.Event(ev)
	if err != nil {
		h.logger.Error("encode event", "event", ev.Type, "err", err)
		return
	}

	h.mu.Lock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		c.logger.Warn("board too slow, disconnecting")
		h.remove(c)
	}
}

// Run broadcasts events until ctx is done or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan cycle.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// Close disconnects every board.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.remove(c)
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n, fn := len(h.clients), h.onCount
	h.mu.Unlock()
	if fn != nil {
		fn(n)
	}
}

// remove unregisters c and closes its queue, which ends the write pump.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n, fn := len(h.clients), h.onCount
	h.mu.Unlock()

	c.logger.Debug("board disconnected")
	if fn != nil {
		fn(n)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", "err", err)
			}
			return
		}

		cmd, err := wire.DecodeCommand(payload)
		if err != nil {
			c.logger.Warn("command dropped", "err", err)
			continue
		}
		c.logger.Info("command received", "command", cmd.Name)
		h.ctrl.Apply(cmd)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn("write failed", "err", err)
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
