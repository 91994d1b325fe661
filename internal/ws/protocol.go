package ws

import (
	"encoding/json"

	"github.com/duelgrid/backend/internal/game"
)

type MessageType string

const (
	// Server -> client.
	MsgWelcome MessageType = "welcome"
	MsgEvent   MessageType = "event"
	MsgFrame   MessageType = "frame"
	MsgError   MessageType = "error"

	// Client -> server.
	MsgInput MessageType = "input"
	MsgLeave MessageType = "leave"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// clientMessage is the inbound envelope; the payload stays raw until the
// type is known.
type clientMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WelcomePayload acknowledges a join or reattach.
type WelcomePayload struct {
	Seat    int           `json:"seat"`
	Session game.Snapshot `json:"session"`
}

// FramePayload carries outbound simulation bytes (base64 on the wire).
type FramePayload struct {
	Data []byte `json:"data"`
}

// InputPayload carries inbound simulation bytes.
type InputPayload struct {
	Data []byte `json:"data"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
