// Package relay fans chat messages and typing indicators out to the
// online members of a conversation.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/Omprakash1353/Social-Media-Server/internal/protocol"
	"github.com/Omprakash1353/Social-Media-Server/internal/store"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
)

type MessageRelay struct {
	logger   *slog.Logger
	registry state.Registry
	messages store.MessageStore
	now      func() time.Time
}

func NewMessageRelay(logger *slog.Logger, registry state.Registry, messages store.MessageStore) *MessageRelay {
	return &MessageRelay{
		logger:   logger.With(slog.String("component", "message_relay")),
		registry: registry,
		messages: messages,
		now:      time.Now,
	}
}

// Relay delivers content to the online members of the conversation,
// excluding the sender's own connection, then persists the message record
// in the background. Live delivery is never gated on persistence: a save
// failure is reported back to the sender as an error frame while the
// recipients keep the already-delivered event.
func (r *MessageRelay) Relay(ctx context.Context, sender *state.Connection, conversationID string, members []string, content string) {
	frame, err := protocol.Encode(protocol.EventNewMessage, protocol.NewMessageOut{
		Content:        content,
		Sender:         sender.Sender,
		ConversationID: conversationID,
		CreatedAt:      r.now().UTC(),
	})
	if err != nil {
		r.logger.Error("Failed to encode new-message event", slog.Any("error", err))
		return
	}

	targets := fanOutTargets(r.registry.ResolveMany(members), sender.ID)
	for _, target := range targets {
		target.Link.Send(frame)
	}
	r.logger.Debug("Relayed message",
		slog.String("conversationID", conversationID),
		slog.String("sender", sender.Identity),
		slog.Int("delivered", len(targets)),
	)

	rec := store.MessageRecord{
		Content:      content,
		Sender:       sender.Identity,
		Conversation: conversationID,
	}
	// The write must survive the sender disconnecting right after send.
	go r.persist(context.WithoutCancel(ctx), sender, rec)
}

func (r *MessageRelay) persist(ctx context.Context, sender *state.Connection, rec store.MessageRecord) {
	if err := r.messages.SaveMessage(ctx, rec); err != nil {
		r.logger.Error("Failed to persist message",
			slog.String("conversationID", rec.Conversation),
			slog.String("sender", rec.Sender),
			slog.Any("error", err),
		)
		warn, encErr := protocol.Encode(protocol.EventError, protocol.ErrorOut{
			Message: "message delivered but could not be saved",
		})
		if encErr != nil {
			r.logger.Error("Failed to encode persistence warning", slog.Any("error", encErr))
			return
		}
		sender.Link.Send(warn)
	}
}
