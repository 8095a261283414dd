package stream

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one route-processing lifecycle notification. Clients that
// just uploaded a GPX file subscribe to the route ID and wait for
// "done", "failed", or "timeout".
type Event struct {
	RouteID string    `json:"route_id"`
	Status  string    `json:"status"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

const (
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
	StatusTimeout    = "timeout"
)

type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	RouteID string
	Send    chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(routeID string) *Client {
	client := &Client{
		RouteID: routeID,
		Send:    make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[routeID] == nil {
		h.clients[routeID] = map[*Client]struct{}{}
	}
	h.clients[routeID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if routeClients, ok := h.clients[client.RouteID]; ok {
		delete(routeClients, client)
		if len(routeClients) == 0 {
			delete(h.clients, client.RouteID)
		}
	}
	close(client.Send)
}

// Publish broadcasts a processing event to local websocket clients and
// fans it out over redis for other instances.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(event.RouteID, payload)
}

func (h *Hub) Broadcast(routeID string, payload []byte) {
	h.mu.RLock()
	clients := h.clients[routeID]
	h.mu.RUnlock()

	for client := range clients {
		select {
		case client.Send <- payload:
		default:
		}
	}

	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(routeID), payload).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, "routes:*:events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		routeID := routeIDFromChannel(msg.Channel)
		h.mu.RLock()
		clients := h.clients[routeID]
		h.mu.RUnlock()
		for client := range clients {
			select {
			case client.Send <- []byte(msg.Payload):
			default:
			}
		}
	}
}

func redisChannel(routeID string) string {
	return "routes:" + routeID + ":events"
}

func routeIDFromChannel(ch string) string {
	// routes:{route}:events
	const prefix = "routes:"
	const suffix = ":events"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
