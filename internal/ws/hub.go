// Package ws pushes member events to connected browser sessions over
// websockets. Subscribers attach per network; a slow or dead
// subscriber is dropped rather than blocking the broadcast.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/martinsuchenak/ztnetd/internal/log"
	"github.com/martinsuchenak/ztnetd/internal/model"
)

// Message is the envelope pushed to subscribers.
type Message struct {
	Event     string        `json:"event"`
	NetworkID string        `json:"network_id"`
	Member    *model.Member `json:"member,omitempty"`
}

const writeWait = 5 * time.Second

// subscriber serializes writes to one connection. The websocket
// protocol allows a single writer at a time, and publishes arrive
// concurrently from request handlers and the background sweep workers.
type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *subscriber) send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

// Hub tracks subscriber connections keyed by network ID.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*subscriber]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: map[string]map[*subscriber]struct{}{},
	}
}

// Subscribe upgrades the request and registers the connection for a
// network's events.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, networkID string) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "network", networkID, "error", err)
		return
	}
	sub := &subscriber{conn: c}
	h.mu.Lock()
	if h.subs[networkID] == nil {
		h.subs[networkID] = map[*subscriber]struct{}{}
	}
	h.subs[networkID][sub] = struct{}{}
	h.mu.Unlock()
	log.Debug("websocket subscriber connected", "network", networkID)
	go h.readLoop(networkID, sub)
}

// Publish broadcasts a member event to the network's subscribers.
// Implements the event seam the member service publishes into.
func (h *Hub) Publish(networkID, event string, m *model.Member) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subs[networkID]))
	for s := range h.subs[networkID] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	msg := Message{Event: event, NetworkID: networkID, Member: m}
	for _, s := range subs {
		if err := s.send(msg); err != nil {
			h.drop(networkID, s)
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for networkID, subs := range h.subs {
		for s := range subs {
			_ = s.conn.Close()
		}
		delete(h.subs, networkID)
	}
}

// readLoop drains client frames so pings and close frames are
// processed, and unregisters on error.
func (h *Hub) readLoop(networkID string, s *subscriber) {
	defer h.drop(networkID, s)
	for {
		if _, _, err := s.conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(networkID string, s *subscriber) {
	_ = s.conn.Close()
	h.mu.Lock()
	if subs, ok := h.subs[networkID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.subs, networkID)
		}
	}
	h.mu.Unlock()
	log.Debug("websocket subscriber disconnected", "network", networkID)
}
