// Package router decodes inbound frames and dispatches them to the
// handler registered for each event.
package router

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Omprakash1353/Social-Media-Server/internal/metrics"
	"github.com/Omprakash1353/Social-Media-Server/internal/protocol"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
	"github.com/google/uuid"
)

// HandlerFunc processes one inbound event for an authenticated connection.
// Handlers are best-effort: they report problems to the client themselves
// and never take down the connection's event loop.
type HandlerFunc func(ctx context.Context, conn *state.Connection, payload json.RawMessage)

type EventRouter struct {
	logger   *slog.Logger
	registry state.Registry
	handlers map[string]HandlerFunc
	metrics  *metrics.Metrics
}

func NewEventRouter(logger *slog.Logger, registry state.Registry, m *metrics.Metrics) *EventRouter {
	return &EventRouter{
		logger:   logger.With(slog.String("component", "event_router")),
		registry: registry,
		handlers: make(map[string]HandlerFunc),
		metrics:  m,
	}
}

// Handle registers the handler for an event name.
func (r *EventRouter) Handle(event string, h HandlerFunc) {
	r.handlers[event] = h
}

// HandleMessage is the transport's message callback.
func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	conn, ok := r.registry.FindByConnID(connID)
	if !ok {
		// The connection raced its own teardown; nothing to answer to.
		r.logger.Warn("Message from unregistered connection", slog.String("connID", connID.String()))
		return
	}

	var frame protocol.Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		r.logger.Warn("Failed to unmarshal client frame",
			slog.String("connID", connID.String()),
			slog.Any("error", err),
		)
		r.sendError(conn, "malformed frame")
		return
	}

	handler, ok := r.handlers[frame.Event]
	if !ok {
		r.logger.Warn("Received unknown event",
			slog.String("event", frame.Event),
			slog.String("connID", connID.String()),
		)
		r.sendError(conn, "unknown event")
		return
	}

	r.metrics.EventsReceived.WithLabelValues(frame.Event).Inc()
	r.logger.Debug("Dispatching event",
		slog.String("event", frame.Event),
		slog.String("connID", connID.String()),
	)
	handler(ctx, conn, frame.Payload)
}

func (r *EventRouter) sendError(conn *state.Connection, message string) {
	frame, err := protocol.Encode(protocol.EventError, protocol.ErrorOut{Message: message})
	if err != nil {
		r.logger.Error("Failed to encode error frame", slog.Any("error", err))
		return
	}
	conn.Link.Send(frame)
}
