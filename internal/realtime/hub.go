// Package realtime relays chat messages between the participants of a
// consultation over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"telehealth/internal/backplane"
	"telehealth/internal/models"
)

// ConsultationAccess resolves a consultation the user takes part in.
type ConsultationAccess interface {
	GetForParticipant(ctx context.Context, id, userID uint) (*models.Consultation, error)
}

// ChatStore persists chat messages.
type ChatStore interface {
	Create(ctx context.Context, consultationID, senderID uint, message string) (*models.Chat, error)
}

// Hub tracks connected clients and the consultation rooms they joined.
// Outbound chat goes through the bus so every instance sees it.
type Hub struct {
	bus           backplane.Bus
	consultations ConsultationAccess
	chats         ChatStore

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[uint]map[*Client]struct{}
}

func NewHub(bus backplane.Bus, consultations ConsultationAccess, chats ChatStore) *Hub {
	return &Hub{
		bus:           bus,
		consultations: consultations,
		chats:         chats,
		clients:       make(map[*Client]struct{}),
		rooms:         make(map[uint]map[*Client]struct{}),
	}
}

// Start subscribes the hub to the bus. Call it once before serving.
func (h *Hub) Start(ctx context.Context) error {
	return h.bus.Subscribe(ctx, h.deliver)
}

// Serve runs the connection for an authenticated user and blocks until it
// closes.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, userID uint) {
	c := newClient(h, conn, userID)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{"user_id": userID, "remote": conn.RemoteAddr().String()}).Info("Chat client connected.")
	go c.writePump()
	c.readPump(ctx)
	h.remove(c)
	logrus.WithField("user_id", userID).Info("Chat client disconnected.")
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.shutdown()
	}
}

func (h *Hub) join(c *Client, consultationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[consultationID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[consultationID] = room
	}
	room[c] = struct{}{}
	c.rooms[consultationID] = struct{}{}
}

func (h *Hub) leave(c *Client, consultationID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, consultationID)
}

func (h *Hub) leaveLocked(c *Client, consultationID uint) {
	delete(c.rooms, consultationID)
	if room, ok := h.rooms[consultationID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, consultationID)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range c.rooms {
		h.leaveLocked(c, id)
	}
	delete(h.clients, c)
	c.shutdown()
}

// deliver fans a bus message out to the local members of its room.
func (h *Hub) deliver(m backplane.Message) {
	frame, err := json.Marshal(Envelope{Event: EventMessage, Data: m.Payload})
	if err != nil {
		logrus.WithError(err).Error("Failed to encode chat frame.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[m.ConsultationID] {
		if !c.enqueue(frame) {
			logrus.WithFields(logrus.Fields{
				"user_id":         c.userID,
				"consultation_id": m.ConsultationID,
			}).Warn("Chat client send queue full, closing connection.")
		}
	}
}

// roomSize reports how many local clients joined a consultation.
func (h *Hub) roomSize(consultationID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[consultationID])
}
