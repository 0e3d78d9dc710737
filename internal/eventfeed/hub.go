// Package eventfeed broadcasts ledger events to WebSocket subscribers.
// The hub is a plain event sink: it never blocks the ledger, and slow
// subscribers are disconnected rather than buffered without bound.
package eventfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pool-escrow/internal/domain"
)

// HubConfig configures WebSocket feed behavior.
type HubConfig struct {
	// WriteTimeout is timeout for writing frames to a subscriber.
	WriteTimeout time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// PongTimeout is how long to wait for a pong before dropping the peer.
	PongTimeout time.Duration
	// SendBuffer is the per-subscriber outbound queue length. A subscriber
	// whose queue fills up is disconnected.
	SendBuffer int
}

// DefaultHubConfig returns default feed configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongTimeout:  60 * time.Second,
		SendBuffer:   256,
	}
}

// Envelope is the wire format sent to subscribers.
type Envelope struct {
	Type      string          `json:"type"`
	PoolID    string          `json:"pool_id"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Hub fans ledger events out to connected WebSocket subscribers.
type Hub struct {
	config   HubConfig
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates a new feed hub.
func NewHub(config HubConfig, log zerolog.Logger) *Hub {
	return &Hub{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The feed is broadcast-only and carries no credentials
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     log.With().Str("component", "eventfeed").Logger(),
		clients: make(map[*client]struct{}),
		done:    make(chan struct{}),
	}
}

// Publish encodes the event and queues it on every subscriber.
// Implements the ledger event sink contract.
func (h *Hub) Publish(_ context.Context, ev domain.Event) error {
	if h.closed.Load() {
		return fmt.Errorf("event feed closed")
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	frame, err := json.Marshal(Envelope{
		Type:      string(ev.EventType()),
		PoolID:    ev.EventPool().String(),
		Timestamp: ev.OccurredAt(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Queue full: the subscriber is too slow, drop it
			h.log.Warn().Msg("dropping slow feed subscriber")
			go h.remove(c)
		}
	}
	return nil
}

// ServeHTTP upgrades the request and registers the peer as a subscriber.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "feed closed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
	}

	// Re-check closed while holding the lock: Close swaps the flag before
	// taking it, so a registration that wins the lock is always seen by
	// Close, and one that loses observes the flag and backs out.
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.wg.Add(2)
	h.mu.Unlock()

	h.log.Debug().Int("subscribers", count).Msg("feed subscriber connected")

	go h.writeLoop(c)
	go h.readLoop(c)
}

// SubscriberCount reports the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all subscribers and stops the hub.
func (h *Hub) Close() error {
	if h.closed.Swap(true) {
		return nil // Already closed
	}

	close(h.done)

	h.mu.Lock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}

// remove drops a subscriber and closes its connection.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	})
}

// writeLoop pushes queued frames and periodic pings to the peer.
func (h *Hub) writeLoop(c *client) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		case <-h.done:
			return
		}
	}
}

// readLoop discards inbound frames. The feed is one-way; reading is still
// required to process control frames and notice closed peers.
func (h *Hub) readLoop(c *client) {
	defer h.wg.Done()
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(h.config.PongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
