package models

import (
	"encoding/json"
	"time"
)

// Envelope types pushed to private channels.
const (
	EnvelopeChat          = "CHAT"
	EnvelopeRequestUpdate = "REQUEST_UPDATE"
	EnvelopeConnected     = "CONNECTED"
	EnvelopeError         = "ERROR"
)

// Inbound frame types.
const (
	FrameConnect  = "CONNECT"
	FrameChatSend = "chat.send"
)

// Envelope is the unit written to a realtime connection.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope encodes payload under the given type.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// InboundFrame is what a client sends over a realtime connection.
type InboundFrame struct {
	Type        string            `json:"type"`
	Headers     map[string]string `json:"headers,omitempty"`
	RecipientID uint              `json:"recipient_id,omitempty"`
	Content     string            `json:"content,omitempty"`
}

// ChatPayload is the CHAT envelope body. It is delivered to both participants.
type ChatPayload struct {
	ID          uint      `json:"id"`
	SenderID    uint      `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	RecipientID uint      `json:"recipient_id"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

// RequestEvent is the REQUEST_UPDATE envelope body.
type RequestEvent struct {
	Action        string        `json:"action"`
	RequestID     uint          `json:"request_id"`
	DonationID    uint          `json:"donation_id"`
	DonationTitle string        `json:"donation_title,omitempty"`
	Status        RequestStatus `json:"status"`
	ActorID       uint          `json:"actor_id"`
}

// ConnectedPayload answers a CONNECT frame.
type ConnectedPayload struct {
	Authenticated bool   `json:"authenticated"`
	UserID        uint   `json:"user_id,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
}

// ErrorPayload reports a rejected frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Delivery addresses an envelope to a user's private channel. It is the unit
// carried over the Pub/Sub broker between instances.
type Delivery struct {
	UserID   uint     `json:"user_id"`
	Envelope Envelope `json:"envelope"`
}
