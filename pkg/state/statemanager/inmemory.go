package statemanager

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
	"github.com/google/uuid"
)

// InMemoryManager holds all registry state behind one mutex. Process-local
// only; there is no cross-node session sharing.
type InMemoryManager struct {
	mu    sync.RWMutex
	users map[string]*state.Connection    // identity -> live connection
	conns map[uuid.UUID]*state.Connection // connection index, includes evicted-but-open sessions
	rooms map[string]map[uuid.UUID]*state.Connection

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		users:  make(map[string]*state.Connection),
		conns:  make(map[uuid.UUID]*state.Connection),
		rooms:  make(map[string]map[uuid.UUID]*state.Connection),
		logger: logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Registry.
var _ state.Registry = (*InMemoryManager)(nil)

func (m *InMemoryManager) Register(identity string, sender state.SenderInfo, link state.Link) *state.Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn := &state.Connection{
		ID:        link.ID(),
		Identity:  identity,
		Sender:    sender,
		Link:      link,
		CreatedAt: time.Now(),
	}

	if prev, ok := m.users[identity]; ok {
		// Last writer wins on concurrent logins. The previous transport is
		// left open but unmapped; its eventual disconnect fails the
		// connection-id guard and is ignored.
		m.logger.Warn("Identity re-registered, evicting previous mapping",
			slog.String("identity", identity),
			slog.String("prevConnID", prev.ID.String()),
			slog.String("connID", conn.ID.String()),
		)
	}
	m.users[identity] = conn
	m.conns[conn.ID] = conn

	m.logger.Debug("Connection registered",
		slog.String("identity", identity),
		slog.String("connID", conn.ID.String()),
	)
	return conn
}

func (m *InMemoryManager) Deregister(identity string, connID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The physical connection is gone regardless of the guard below.
	delete(m.conns, connID)
	m.dropFromRoomsLocked(connID)

	cur, ok := m.users[identity]
	if !ok {
		// Already deregistered; second call has no additional effect.
		return false
	}
	if cur.ID != connID {
		// Stale disconnect racing a newer session for the same identity.
		m.logger.Debug("Ignoring stale deregister",
			slog.String("identity", identity),
			slog.String("connID", connID.String()),
			slog.String("liveConnID", cur.ID.String()),
		)
		return false
	}

	delete(m.users, identity)
	m.logger.Debug("Connection deregistered",
		slog.String("identity", identity),
		slog.String("connID", connID.String()),
	)
	return true
}

func (m *InMemoryManager) Lookup(identity string) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.users[identity]
	return conn, ok
}

func (m *InMemoryManager) FindByConnID(connID uuid.UUID) (*state.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryManager) IsOnline(identity string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.users[identity]
	return ok
}

func (m *InMemoryManager) ResolveMany(identities []string) []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(identities))
	for _, identity := range identities {
		if conn, ok := m.users[identity]; ok {
			conns = append(conns, conn)
		}
	}
	return conns
}

// --- Signaling Rooms ---

func (m *InMemoryManager) JoinRoom(roomID string, conn *state.Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		room = make(map[uuid.UUID]*state.Connection)
		m.rooms[roomID] = room
	}
	room[conn.ID] = conn
	m.logger.Debug("Connection joined room",
		slog.String("roomID", roomID),
		slog.String("connID", conn.ID.String()),
	)
}

func (m *InMemoryManager) RoomMembers(roomID string) []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]*state.Connection, 0, len(room))
	for _, conn := range room {
		members = append(members, conn)
	}
	return members
}

func (m *InMemoryManager) Connections() []*state.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]*state.Connection, 0, len(m.conns))
	for _, conn := range m.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (m *InMemoryManager) dropFromRoomsLocked(connID uuid.UUID) {
	for roomID, room := range m.rooms {
		if _, ok := room[connID]; !ok {
			continue
		}
		delete(room, connID)
		if len(room) == 0 {
			delete(m.rooms, roomID)
		}
	}
}
