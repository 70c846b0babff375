package state

import (
	"github.com/google/uuid"
)

// Registry is the authoritative identity -> connection mapping plus the
// signaling room membership. It is the single serialization point for
// presence truth: only the connection lifecycle mutates the identity
// mapping, every relay reads through it. An identity is online iff it has
// a live mapping entry; the online set is the mapping's key set by
// construction, so the two can never diverge.
type Registry interface {
	// --- Connection Lifecycle ---
	// Register binds identity to a new connection. A second login for the
	// same identity overwrites the previous mapping (last writer wins); the
	// evicted transport stays open but no longer receives relayed events.
	Register(identity string, sender SenderInfo, link Link) *Connection
	// Deregister removes the mapping only if the stored connection id still
	// matches, so a stale disconnect cannot evict a newer session. It
	// reports whether the mapping was removed by this call. The physical
	// connection is dropped from the connection index and all rooms either
	// way.
	Deregister(identity string, connID uuid.UUID) bool

	// --- Presence Reads ---
	Lookup(identity string) (*Connection, bool)
	FindByConnID(connID uuid.UUID) (*Connection, bool)
	IsOnline(identity string) bool
	// ResolveMany returns the live connections for the given identities,
	// silently dropping the offline ones. This is the batch fan-out target
	// resolver used by every relay.
	ResolveMany(identities []string) []*Connection

	// --- Signaling Rooms ---
	// A connection leaves its rooms only by disconnecting; there is no
	// explicit leave, matching the client protocol.
	JoinRoom(roomID string, conn *Connection)
	RoomMembers(roomID string) []*Connection

	// Connections snapshots every live connection, used for shutdown.
	Connections() []*Connection
}
