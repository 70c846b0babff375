// Package presence broadcasts online/offline transitions to the direct
// conversation partners of an identity.
package presence

import (
	"context"
	"log/slog"

	"github.com/Omprakash1353/Social-Media-Server/internal/protocol"
	"github.com/Omprakash1353/Social-Media-Server/internal/store"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
)

type Notifier struct {
	logger     *slog.Logger
	registry   state.Registry
	membership store.MembershipSource
}

func NewNotifier(logger *slog.Logger, registry state.Registry, membership store.MembershipSource) *Notifier {
	return &Notifier{
		logger:     logger.With(slog.String("component", "presence")),
		registry:   registry,
		membership: membership,
	}
}

// Notify pushes a user-status event for identity to each of its direct
// peers currently online. Best-effort: any failure is logged and swallowed
// so the connect/disconnect flow it is attached to always completes.
func (n *Notifier) Notify(ctx context.Context, identity string, online bool) {
	peers, err := n.membership.DirectPeersOf(ctx, identity)
	if err != nil {
		n.logger.Error("Failed to fetch direct peers for status broadcast",
			slog.String("identity", identity),
			slog.Any("error", err),
		)
		return
	}

	targets := n.registry.ResolveMany(dedupe(peers, identity))
	if len(targets) == 0 {
		return
	}

	frame, err := protocol.Encode(protocol.EventUserStatus, protocol.UserStatus{
		UserID: identity,
		Online: online,
	})
	if err != nil {
		n.logger.Error("Failed to encode user-status event", slog.Any("error", err))
		return
	}

	for _, target := range targets {
		target.Link.Send(frame)
	}
	n.logger.Debug("Broadcast user status",
		slog.String("identity", identity),
		slog.Bool("online", online),
		slog.Int("targets", len(targets)),
	)
}

// QueryRemoteStatus answers one requester's ad-hoc presence check for a
// single peer, used when a client opens a conversation and wants the
// current status immediately rather than waiting for the next broadcast.
func (n *Notifier) QueryRemoteStatus(target string) protocol.RemoteStatus {
	conn, ok := n.registry.Lookup(target)
	if !ok {
		return protocol.RemoteStatus{Online: false}
	}
	return protocol.RemoteStatus{Online: true, ConnectionID: conn.ID.String()}
}

// dedupe returns identities minus duplicates and the excluded identity,
// preserving order. Membership rows repeat an identity once per shared
// conversation.
func dedupe(identities []string, exclude string) []string {
	seen := make(map[string]struct{}, len(identities))
	out := make([]string, 0, len(identities))
	for _, id := range identities {
		if id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
