package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Omprakash1353/Social-Media-Server/internal/protocol"
	"github.com/Omprakash1353/Social-Media-Server/internal/router"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
)

// registerHandlers binds every inbound event to its component.
func (a *App) registerHandlers() {
	a.eventRouter.Handle(protocol.EventNewMessage, a.handleNewMessage)
	a.eventRouter.Handle(protocol.EventStartTyping, a.typingHandler(a.typing.Start))
	a.eventRouter.Handle(protocol.EventStopTyping, a.typingHandler(a.typing.Stop))
	a.eventRouter.Handle(protocol.EventRemoteStatusQuery, a.handleRemoteStatusQuery)

	a.eventRouter.Handle(protocol.EventRoomJoin, a.signalingHandler(a.broker.JoinRoom))
	a.eventRouter.Handle(protocol.EventCallOffer, a.signalingHandler(a.broker.Offer))
	a.eventRouter.Handle(protocol.EventCallAccept, a.signalingHandler(a.broker.Accept))
	a.eventRouter.Handle(protocol.EventCallEnd, a.signalingHandler(a.broker.End))
	a.eventRouter.Handle(protocol.EventNegotiationNeeded, a.signalingHandler(a.broker.NegotiationNeeded))
	a.eventRouter.Handle(protocol.EventNegotiationDone, a.signalingHandler(a.broker.NegotiationDone))
}

func (a *App) handleNewMessage(ctx context.Context, conn *state.Connection, payload json.RawMessage) {
	var in protocol.NewMessageIn
	if err := json.Unmarshal(payload, &in); err != nil {
		a.rejectPayload(conn, protocol.EventNewMessage, err)
		return
	}
	a.messages.Relay(ctx, conn, in.ConversationID, in.Members, in.Message)
	a.metrics.MessagesRelayed.Inc()
}

func (a *App) typingHandler(fanOut func(sender *state.Connection, conversationID string, members []string)) router.HandlerFunc {
	return func(_ context.Context, conn *state.Connection, payload json.RawMessage) {
		var in protocol.TypingIn
		if err := json.Unmarshal(payload, &in); err != nil {
			// Typing is best-effort; a bad payload is dropped after logging.
			a.logger.Warn("Dropping malformed typing event", slog.Any("error", err))
			return
		}
		fanOut(conn, in.ConversationID, in.Members)
	}
}

func (a *App) handleRemoteStatusQuery(_ context.Context, conn *state.Connection, payload json.RawMessage) {
	var in protocol.RemoteStatusQueryIn
	if err := json.Unmarshal(payload, &in); err != nil {
		a.rejectPayload(conn, protocol.EventRemoteStatusQuery, err)
		return
	}
	status := a.presence.QueryRemoteStatus(in.Member)
	frame, err := protocol.Encode(protocol.EventRemoteStatusQuery, status)
	if err != nil {
		a.logger.Error("Failed to encode remote status reply", slog.Any("error", err))
		return
	}
	conn.Link.Send(frame)
}

func (a *App) signalingHandler(op func(caller *state.Connection, payload []byte)) router.HandlerFunc {
	return func(_ context.Context, conn *state.Connection, payload json.RawMessage) {
		op(conn, payload)
	}
}

func (a *App) rejectPayload(conn *state.Connection, event string, err error) {
	a.logger.Warn("Malformed payload",
		slog.String("event", event),
		slog.String("connID", conn.ID.String()),
		slog.Any("error", err),
	)
	frame, encErr := protocol.Encode(protocol.EventError, protocol.ErrorOut{Message: "malformed payload"})
	if encErr != nil {
		a.logger.Error("Failed to encode error frame", slog.Any("error", encErr))
		return
	}
	conn.Link.Send(frame)
}
