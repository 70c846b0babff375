// Package signaling relays call-setup metadata between connections. The
// broker is fully stateless: a call is just two connection ids exchanging
// frames, optionally grouped by a room id for join broadcasts, and leaves
// no server-side residue when it ends.
//
// Targets are caller-supplied connection ids and are not checked against
// any relationship between the parties; authorization for calling has to
// happen before these events are allowed.
package signaling

import (
	"encoding/json"
	"log/slog"

	"github.com/Omprakash1353/Social-Media-Server/internal/protocol"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

type Broker struct {
	logger   *slog.Logger
	registry state.Registry
}

func NewBroker(logger *slog.Logger, registry state.Registry) *Broker {
	return &Broker{
		logger:   logger.With(slog.String("component", "signaling")),
		registry: registry,
	}
}

// signalOut is the relayed shape of every targeted signaling event. The
// offer/answer blobs pass through untouched.
type signalOut struct {
	From   string          `json:"from"`
	Offer  json.RawMessage `json:"offer,omitempty"`
	Answer json.RawMessage `json:"answer,omitempty"`
}

// JoinRoom announces the caller to every connection already in the room,
// adds the caller's connection to the room so later announcements reach
// it, and echoes the join back to the caller as acknowledgement.
func (b *Broker) JoinRoom(caller *state.Connection, payload []byte) {
	userID := gjson.GetBytes(payload, "userId").String()
	roomID := gjson.GetBytes(payload, "callId").String()
	if roomID == "" {
		b.logger.Warn("room-join without callId", slog.String("connID", caller.ID.String()))
		return
	}

	frame, err := protocol.Encode(protocol.EventUserJoined, protocol.UserJoined{
		UserID:       userID,
		ConnectionID: caller.ID.String(),
	})
	if err != nil {
		b.logger.Error("Failed to encode user-joined event", slog.Any("error", err))
		return
	}
	for _, member := range b.registry.RoomMembers(roomID) {
		member.Link.Send(frame)
	}

	b.registry.JoinRoom(roomID, caller)

	echo, err := protocol.Encode(protocol.EventRoomJoin, json.RawMessage(payload))
	if err != nil {
		b.logger.Error("Failed to encode room-join echo", slog.Any("error", err))
		return
	}
	caller.Link.Send(echo)
}

// Offer relays a call offer to the target connection as incoming-call.
func (b *Broker) Offer(caller *state.Connection, payload []byte) {
	b.forward(caller, payload, protocol.EventIncomingCall, "offer")
}

// Accept relays the callee's answer back as call-accepted.
func (b *Broker) Accept(caller *state.Connection, payload []byte) {
	b.forward(caller, payload, protocol.EventCallAccepted, "answer")
}

// End tells the target the call is over. No payload travels with it.
func (b *Broker) End(caller *state.Connection, payload []byte) {
	target, ok := b.target(caller, payload)
	if !ok {
		return
	}
	frame, err := protocol.Encode(protocol.EventCallEnd, nil)
	if err != nil {
		b.logger.Error("Failed to encode call-end event", slog.Any("error", err))
		return
	}
	target.Link.Send(frame)
}

// NegotiationNeeded relays a renegotiation offer to the target.
func (b *Broker) NegotiationNeeded(caller *state.Connection, payload []byte) {
	b.forward(caller, payload, protocol.EventNegotiationNeeded, "offer")
}

// NegotiationDone relays the renegotiation answer as negotiation-final.
func (b *Broker) NegotiationDone(caller *state.Connection, payload []byte) {
	b.forward(caller, payload, protocol.EventNegotiationFinal, "answer")
}

func (b *Broker) forward(caller *state.Connection, payload []byte, outEvent, field string) {
	target, ok := b.target(caller, payload)
	if !ok {
		return
	}

	out := signalOut{From: caller.ID.String()}
	if blob := gjson.GetBytes(payload, field); blob.Exists() {
		raw := json.RawMessage(blob.Raw)
		if field == "answer" {
			out.Answer = raw
		} else {
			out.Offer = raw
		}
	}

	frame, err := protocol.Encode(outEvent, out)
	if err != nil {
		b.logger.Error("Failed to encode signaling event", slog.String("event", outEvent), slog.Any("error", err))
		return
	}
	target.Link.Send(frame)
}

// target resolves the caller-supplied "to" connection id. A missing or
// vanished target is not an error; the event is dropped quietly, matching
// the self-expiring nature of signaling exchanges.
func (b *Broker) target(caller *state.Connection, payload []byte) (*state.Connection, bool) {
	to := gjson.GetBytes(payload, "to").String()
	id, err := uuid.Parse(to)
	if err != nil {
		b.logger.Warn("Signaling event with unparseable target",
			slog.String("connID", caller.ID.String()),
			slog.String("to", to),
		)
		return nil, false
	}
	target, ok := b.registry.FindByConnID(id)
	if !ok {
		b.logger.Debug("Signaling target not connected", slog.String("to", to))
		return nil, false
	}
	return target, true
}
