package realtime

import (
	"encoding/json"
)

// Event names on the wire.
const (
	EventJoin    = "joinConsultation"
	EventJoined  = "joinedConsultation"
	EventLeave   = "leaveConsultation"
	EventLeft    = "leftConsultation"
	EventMessage = "chatMessage"
	EventError   = "error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomRequest struct {
	ConsultationID uint `json:"consultationId"`
}

type chatRequest struct {
	ConsultationID uint   `json:"consultationId"`
	SenderID       *uint  `json:"senderId"`
	Message        string `json:"message"`
}

// roomScoped is an inbound payload addressed to one consultation room.
type roomScoped interface{ consultation() uint }

func (r *roomRequest) consultation() uint { return r.ConsultationID }
func (r *chatRequest) consultation() uint { return r.ConsultationID }

type errorData struct {
	Message string `json:"message"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
