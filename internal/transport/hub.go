// Package transport implements the display-channel side of §6's
// outbound contracts: a websocket fan-out hub that filters
// internal/workerpool's dispatched event stream per subscriber (§4.4) and
// broadcasts the admitted events as events.TransportRecord. Adapted
// near-directly from internal/api/stream.go's Hub/Client pair, with
// DashboardEvent swapped for events.TransportRecord, the upstream source
// switched from a dashboard-event channel to
// internal/workerpool.Pool's display channel, and a per-client
// internal/filter.Config gate added ahead of each send.
package transport

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tickstock-core/internal/filter"
	"tickstock-core/internal/workerpool"
	"tickstock-core/pkg/events"
)

// Hub manages websocket clients and fans dispatched events out to
// whichever connected clients' filters admit them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan workerpool.DisplayItem
	mu         sync.RWMutex
	logger     *slog.Logger

	dropped uint64
}

// NewHub creates a new websocket hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan workerpool.DisplayItem, 256),
		logger:     logger.With("component", "transport-hub"),
	}
}

// Run drives the hub's register/unregister/broadcast loop. Intended to
// be called in its own goroutine; returns when stop fires.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("client connected", "count", len(h.clients))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("client disconnected", "count", len(h.clients))

		case item := <-h.broadcast:
			h.fanOut(item)
		}
	}
}

// fanOut marshals item once (the wire encoding doesn't vary by
// subscriber) and sends it only to clients whose filter admits it
// (§4.4's per-subscriber live filtering).
func (h *Hub) fanOut(item workerpool.DisplayItem) {
	now := float64(time.Now().Unix())
	var data []byte

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !filter.Admit(client.filterCfg, item.Event, item.HighLowCount, now) {
			continue
		}
		if data == nil {
			var err error
			data, err = json.Marshal(events.ToTransport(item.Event))
			if err != nil {
				h.logger.Error("failed to marshal transport record", "error", err)
				return
			}
		}
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Pump reads from a display channel (internal/workerpool.Pool.Display)
// and offers every item to the hub's broadcast buffer, until the channel
// closes or stop fires. Overflow of the hub's own broadcast buffer drops
// the item with a counter, matching §4.4's display channel semantics
// (non-blocking, drop-with-diagnostics on full).
func (h *Hub) Pump(display <-chan workerpool.DisplayItem, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case item, ok := <-display:
			if !ok {
				return
			}
			h.Broadcast(item)
		}
	}
}

// Broadcast offers a single dispatched item to the hub's broadcast
// buffer for per-subscriber filtering and fan-out.
func (h *Hub) Broadcast(item workerpool.DisplayItem) {
	select {
	case h.broadcast <- item:
	default:
		h.mu.Lock()
		h.dropped++
		h.mu.Unlock()
		h.logger.Warn("broadcast channel full, dropping record", "dropped_total", h.dropped)
	}
}

// Dropped returns the running count of records dropped due to a full
// broadcast buffer.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// Client is one connected websocket subscriber, gated by its own filter
// config on the live event stream (§4.4).
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	filterCfg filter.Config
}

// NewClient registers a websocket connection with the hub and starts
// its read/write pumps. cfg is the subscriber's filter config, validated
// by the caller before the connection was upgraded.
func NewClient(hub *Hub, conn *websocket.Conn, cfg filter.Config) *Client {
	client := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		filterCfg: cfg,
	}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()

	return client
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

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// The display feed is one-directional; any inbound message just
		// keeps the read deadline alive via the pong handler.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			break
		}
	}
}
