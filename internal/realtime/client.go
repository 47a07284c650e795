package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"telehealth/internal/apperr"
	"telehealth/internal/backplane"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendQueueSize  = 256
)

// Client is one websocket connection. Inbound events are handled one at a
// time on the read goroutine; outbound frames go through send in order.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uint
	send   chan []byte

	// rooms is owned by the read goroutine
	rooms map[uint]struct{}

	mu     sync.Mutex
	closed bool
}

func newClient(h *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendQueueSize),
		rooms:  make(map[uint]struct{}),
	}
}

// enqueue queues frame without blocking. A full queue closes the client.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		c.closeLocked()
		return false
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closeLocked()
	}
}

func (c *Client) closeLocked() {
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

func (c *Client) emit(event string, data any) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode event.")
		return
	}
	c.enqueue(frame)
}

func (c *Client) emitError(format string, args ...any) {
	c.emit(EventError, errorData{Message: fmt.Sprintf(format, args...)})
}

func (c *Client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("user_id", c.userID).Warn("Chat connection closed unexpectedly.")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handle(ctx, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.emitError("malformed event")
		return
	}

	switch env.Event {
	case EventJoin:
		var req roomRequest
		if !c.decode(env, &req) {
			return
		}
		c.join(ctx, req.ConsultationID)
	case EventLeave:
		var req roomRequest
		if !c.decode(env, &req) {
			return
		}
		c.hub.leave(c, req.ConsultationID)
		c.emit(EventLeft, req)
	case EventMessage:
		var req chatRequest
		if !c.decode(env, &req) {
			return
		}
		c.message(ctx, req)
	default:
		c.emitError("unknown event %q", env.Event)
	}
}

// decode unpacks the event payload and reports a missing consultationId.
// An absent payload counts as empty.
func (c *Client) decode(env Envelope, req roomScoped) bool {
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, req); err != nil {
			c.emitError("malformed %s event", env.Event)
			return false
		}
	}
	if req.consultation() == 0 {
		c.emitError("consultationId is required")
		return false
	}
	return true
}

func (c *Client) join(ctx context.Context, consultationID uint) {
	if _, err := c.hub.consultations.GetForParticipant(ctx, consultationID, c.userID); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":         c.userID,
			"consultation_id": consultationID,
		}).Warn("Chat join rejected.")
		c.emitError("consultation %d not found", consultationID)
		return
	}
	c.hub.join(c, consultationID)
	logrus.WithFields(logrus.Fields{"user_id": c.userID, "consultation_id": consultationID}).Debug("Chat client joined consultation.")
	c.emit(EventJoined, roomRequest{ConsultationID: consultationID})
}

func (c *Client) message(ctx context.Context, req chatRequest) {
	log := logrus.WithFields(logrus.Fields{"user_id": c.userID, "consultation_id": req.ConsultationID})
	if _, ok := c.rooms[req.ConsultationID]; !ok {
		c.emitError("join consultation %d before sending messages", req.ConsultationID)
		return
	}
	if req.SenderID != nil && *req.SenderID != c.userID {
		log.WithField("claimed_sender", *req.SenderID).Warn("Chat sender mismatch.")
		c.emitError("senderId does not match the authenticated user")
		return
	}

	chat, err := c.hub.chats.Create(ctx, req.ConsultationID, c.userID, req.Message)
	if err != nil {
		log.WithError(err).Warn("Failed to persist chat message.")
		c.emitError("%s", messageError(err))
		return
	}

	payload, err := json.Marshal(chat)
	if err != nil {
		log.WithError(err).Error("Failed to encode chat message.")
		c.emitError("could not deliver message")
		return
	}
	if err := c.hub.bus.Publish(ctx, backplane.Message{ConsultationID: req.ConsultationID, Payload: payload}); err != nil {
		log.WithError(err).WithField("chat_id", chat.ID).Error("Failed to publish chat message.")
		c.emitError("message %d was saved but could not be delivered", chat.ID)
	}
}

// messageError is the text sent back when a message cannot be stored.
func messageError(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && (e.Kind == apperr.KindValidation || e.Kind == apperr.KindNotFound) {
		return e.Message
	}
	return "could not save message"
}
