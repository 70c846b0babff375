// Package store defines the persistence collaborators the gateway
// consumes and a SQLite-backed implementation of them. The gateway itself
// owns no durable state; everything here is the boundary to the account
// and conversation systems.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is the resolved identity of an authenticated user.
type Account struct {
	ID   string
	Name string
}

// MessageRecord is the durable form of a relayed chat message.
type MessageRecord struct {
	Content      string
	Sender       string
	Conversation string
}

// AccountSource resolves token subjects to known accounts.
type AccountSource interface {
	FindAccount(ctx context.Context, id string) (Account, error)
}

// MembershipSource answers conversation membership queries. Results are
// fetched per event and never cached by the gateway, so membership changes
// in the group-management system take effect immediately.
type MembershipSource interface {
	// DirectPeersOf returns the distinct identities sharing a non-group
	// conversation with the given identity, excluding the identity itself.
	DirectPeersOf(ctx context.Context, identity string) ([]string, error)
	// MembersOf returns the member identities of one conversation.
	MembersOf(ctx context.Context, conversationID string) ([]string, error)
}

// MessageStore is the durable write surface of the relay path.
type MessageStore interface {
	SaveMessage(ctx context.Context, rec MessageRecord) error
	UpdateLastSeen(ctx context.Context, identity string, at time.Time) error
}
