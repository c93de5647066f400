package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"legal-discovery-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "discovery:audit:feed"

// Hub fans audit feed frames out to every connected reviewer. With Redis
// configured, frames broadcast on one instance reach clients of all others.
type Hub struct {
	instanceID string

	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	rdb    *redis.Client
	logger logger.ILogger
}

type clusterFrame struct {
	Origin  string          `json:"origin"`
	Message json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		instanceID: uuid.NewString(),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client, 16),
		rdb:        rdb,
		logger:     log,
	}
}

// Run owns client registration until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.Send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Hub", "Feed client registered", map[string]interface{}{"actor": c.Actor})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.Send)
				h.logger.Info("Hub", "Feed client unregistered", map[string]interface{}{"actor": c.Actor})
			}
			h.mu.Unlock()
		}
	}
}

// Clients returns the number of local connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers a frame to local clients and, when clustered, to peers.
func (h *Hub) Broadcast(ctx context.Context, frame []byte) {
	h.deliver(frame)

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterFrame{Origin: h.instanceID, Message: frame})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(ctx, clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"error": err.Error()})
	}
}

// deliver never blocks; a client whose buffer is full is dropped.
func (h *Hub) deliver(frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.Send <- frame:
		default:
			h.logger.Warn("Hub", "Feed client too slow, dropping", map[string]interface{}{"actor": c.Actor})
			go func(c *Client) { h.unregister <- c }(c)
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var frame clusterFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				h.logger.Warn("Hub", "Unreadable cluster frame", map[string]interface{}{"error": err.Error()})
				continue
			}
			if frame.Origin == h.instanceID {
				continue
			}
			h.deliver(frame.Message)
		}
	}
}
