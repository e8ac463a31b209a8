// Package websocket fans sync, scheduler and booking events out to dashboard clients.
package websocket

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

const (
	clientBuffer    = 64
	broadcastBuffer = 256
)

// Hub owns the set of connected clients. Membership changes go through Run;
// SendTo and ClientCount read the set under mu.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	events     chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// NewHub creates an empty hub. Call Run before registering clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		events:     make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run processes membership changes and broadcasts until ctx is cancelled,
// then closes every client's channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client %s connected (%d connected)", c.ID, n)

		case c := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[c]
			if known {
				h.drop(c)
			}
			n := len(h.clients)
			h.mu.Unlock()
			if known {
				log.Printf("WebSocket client %s disconnected (%d connected)", c.ID, n)
			}

		case msg := <-h.events:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					log.Printf("WebSocket client %s is not keeping up, disconnecting", c.ID)
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes c and closes its channel. Callers hold mu.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is discarded.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.events <- msg:
	default:
		log.Println("WebSocket event queue full, dropping message")
	}
}

// Register subscribes c to broadcasts. It returns immediately once Run has exited.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes c and closes its channel. It is safe to call for a
// client the hub already dropped.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendTo queues msg for one client. It reports false if the client is gone
// or its buffer is full.
func (h *Hub) SendTo(c *Client, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one subscriber. Its channel is closed when the hub drops it.
type Client struct {
	ID   string
	send chan []byte
}

// NewClient creates a client with a fresh ID and a buffered outbound queue.
func NewClient() *Client {
	return &Client{ID: uuid.NewString(), send: make(chan []byte, clientBuffer)}
}

// Send is the client's outbound queue.
func (c *Client) Send() <-chan []byte {
	return c.send
}
