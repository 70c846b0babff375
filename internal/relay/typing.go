package relay

import (
	"log/slog"

	"github.com/Omprakash1353/Social-Media-Server/internal/protocol"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
)

// TypingRelay is a stateless fan-out of typing indicators. No persistence,
// no acknowledgement; offline members simply miss the event. Debouncing is
// the client's concern.
type TypingRelay struct {
	logger   *slog.Logger
	registry state.Registry
}

func NewTypingRelay(logger *slog.Logger, registry state.Registry) *TypingRelay {
	return &TypingRelay{
		logger:   logger.With(slog.String("component", "typing_relay")),
		registry: registry,
	}
}

func (r *TypingRelay) Start(sender *state.Connection, conversationID string, members []string) {
	r.fanOut(protocol.EventStartTyping, sender, conversationID, members)
}

func (r *TypingRelay) Stop(sender *state.Connection, conversationID string, members []string) {
	r.fanOut(protocol.EventStopTyping, sender, conversationID, members)
}

func (r *TypingRelay) fanOut(event string, sender *state.Connection, conversationID string, members []string) {
	frame, err := protocol.Encode(event, protocol.TypingOut{
		ConversationID: conversationID,
		Sender:         sender.Sender,
	})
	if err != nil {
		r.logger.Error("Failed to encode typing event", slog.String("event", event), slog.Any("error", err))
		return
	}
	for _, target := range fanOutTargets(r.registry.ResolveMany(members), sender.ID) {
		target.Link.Send(frame)
	}
}
