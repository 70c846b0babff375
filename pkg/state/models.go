package state

import (
	"time"

	"github.com/google/uuid"
)

// Link is the transport surface the registry and relays need from a live
// connection. *transport.Connection satisfies it; tests substitute fakes.
type Link interface {
	ID() uuid.UUID
	Send(msg []byte)
	Close(err error)
}

// SenderInfo is the denormalized identity snapshot cached at handshake so
// relays never have to hit the account store per message.
type SenderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Connection is the registry's representation of one authenticated
// transport session.
type Connection struct {
	ID        uuid.UUID
	Identity  string
	Sender    SenderInfo
	Link      Link
	CreatedAt time.Time
}
