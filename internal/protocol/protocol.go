// Package protocol defines the JSON frame exchanged with clients and the
// payload shapes of every event the gateway consumes or emits.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
)

// Frame is the envelope for every message in both directions.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound events.
const (
	EventNewMessage        = "new-message"
	EventStartTyping       = "start-typing"
	EventStopTyping        = "stop-typing"
	EventRemoteStatusQuery = "remote-status-query"
	EventRoomJoin          = "room-join"
	EventCallOffer         = "call-offer"
	EventCallAccept        = "call-accept"
	EventCallEnd           = "call-end"
	EventNegotiationNeeded = "negotiation-needed"
	EventNegotiationDone   = "negotiation-done"
)

// Outbound-only events.
const (
	EventUserStatus       = "user-status"
	EventUserJoined       = "user-joined"
	EventIncomingCall     = "incoming-call"
	EventCallAccepted     = "call-accepted"
	EventNegotiationFinal = "negotiation-final"
	EventError            = "error"
)

// Encode marshals an outbound frame. A nil payload yields an event-only
// frame (call-end has no body).
func Encode(event string, payload any) ([]byte, error) {
	frame := Frame{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		frame.Payload = raw
	}
	msg, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", event, err)
	}
	return msg, nil
}

// --- Inbound payloads ---

type NewMessageIn struct {
	Members        []string `json:"members"`
	ConversationID string   `json:"conversationId"`
	Message        string   `json:"message"`
}

type TypingIn struct {
	Members        []string `json:"members"`
	ConversationID string   `json:"conversationId"`
}

type RemoteStatusQueryIn struct {
	Member string `json:"member"`
}

// --- Outbound payloads ---

type UserStatus struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type RemoteStatus struct {
	Online       bool   `json:"online"`
	ConnectionID string `json:"connectionId,omitempty"`
}

type NewMessageOut struct {
	Content        string           `json:"content"`
	Sender         state.SenderInfo `json:"sender"`
	ConversationID string           `json:"conversationId"`
	CreatedAt      time.Time        `json:"createdAt"`
}

type TypingOut struct {
	ConversationID string           `json:"conversationId"`
	Sender         state.SenderInfo `json:"sender"`
}

type UserJoined struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

type ErrorOut struct {
	Message string `json:"message"`
}
