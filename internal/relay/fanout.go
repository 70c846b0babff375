package relay

import (
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
	"github.com/google/uuid"
)

// fanOutTargets narrows resolved connections to unique delivery targets,
// dropping the sender's own connection and the duplicates a repeated
// identity in the member list produces. Each target receives an event at
// most once.
func fanOutTargets(conns []*state.Connection, sender uuid.UUID) []*state.Connection {
	seen := make(map[uuid.UUID]struct{}, len(conns))
	out := make([]*state.Connection, 0, len(conns))
	for _, conn := range conns {
		if conn.ID == sender {
			continue
		}
		if _, dup := seen[conn.ID]; dup {
			continue
		}
		seen[conn.ID] = struct{}{}
		out = append(out, conn)
	}
	return out
}
