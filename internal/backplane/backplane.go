// Package backplane fans chat messages out to every server instance.
package backplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrClosed = errors.New("backplane: closed")

// Message is a persisted chat event addressed to one consultation room.
type Message struct {
	ConsultationID uint            `json:"consultationId"`
	Payload        json.RawMessage `json:"payload"`
}

// Handler receives every message published on the bus, including this
// instance's own.
type Handler func(Message)

type Bus interface {
	Publish(ctx context.Context, m Message) error
	// Subscribe starts delivering messages to h until ctx is done or the
	// bus is closed.
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

func encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("backplane: encode message: %w", err)
	}
	return b, nil
}

func decode(b []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return Message{}, fmt.Errorf("backplane: decode message: %w", err)
	}
	return m, nil
}
