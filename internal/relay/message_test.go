package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Omprakash1353/Social-Media-Server/internal/protocol"
	"github.com/Omprakash1353/Social-Media-Server/internal/relay"
	"github.com/Omprakash1353/Social-Media-Server/internal/store"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state"
	"github.com/Omprakash1353/Social-Media-Server/pkg/state/statemanager"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type recordingLink struct {
	id     uuid.UUID
	mu     sync.Mutex
	frames []protocol.Frame
}

func newRecordingLink() *recordingLink { return &recordingLink{id: uuid.New()} }

func (l *recordingLink) ID() uuid.UUID   { return l.id }
func (l *recordingLink) Close(err error) {}

func (l *recordingLink) Send(msg []byte) {
	var frame protocol.Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		panic(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frames = append(l.frames, frame)
}

func (l *recordingLink) Frames() []protocol.Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]protocol.Frame(nil), l.frames...)
}

type fakeMessageStore struct {
	mu    sync.Mutex
	saved []store.MessageRecord
	err   error
}

func (f *fakeMessageStore) SaveMessage(_ context.Context, rec store.MessageRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeMessageStore) UpdateLastSeen(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (f *fakeMessageStore) Saved() []store.MessageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.MessageRecord(nil), f.saved...)
}

func register(m *statemanager.InMemoryManager, identity string) (*state.Connection, *recordingLink) {
	link := newRecordingLink()
	conn := m.Register(identity, state.SenderInfo{ID: identity, Name: identity}, link)
	return conn, link
}

func TestRelayFanOutExcludesSenderAndOffline(t *testing.T) {
	registry := statemanager.NewInMemoryManager(newTestLogger())
	sender, senderLink := register(registry, "u1")
	_, u2 := register(registry, "u2")
	// u3 is a member but offline.

	messages := &fakeMessageStore{}
	r := relay.NewMessageRelay(newTestLogger(), registry, messages)

	r.Relay(context.Background(), sender, "c1", []string{"u1", "u2", "u3"}, "hi")

	frames := u2.Frames()
	require.Len(t, frames, 1)
	require.Equal(t, protocol.EventNewMessage, frames[0].Event)

	var out protocol.NewMessageOut
	require.NoError(t, json.Unmarshal(frames[0].Payload, &out))
	require.Equal(t, "hi", out.Content)
	require.Equal(t, "c1", out.ConversationID)
	require.Equal(t, state.SenderInfo{ID: "u1", Name: "u1"}, out.Sender)
	require.WithinDuration(t, time.Now(), out.CreatedAt, 5*time.Second)

	require.Empty(t, senderLink.Frames(), "sender must not receive its own message")
}

func TestRelayDeliversOncePerTarget(t *testing.T) {
	registry := statemanager.NewInMemoryManager(newTestLogger())
	sender, _ := register(registry, "u1")
	_, u2 := register(registry, "u2")

	r := relay.NewMessageRelay(newTestLogger(), registry, &fakeMessageStore{})

	// A member repeated across the list must still receive one frame.
	r.Relay(context.Background(), sender, "c1", []string{"u2", "u2", "u2"}, "hi")

	require.Len(t, u2.Frames(), 1)
}

func TestRelayPersistsExactlyOnce(t *testing.T) {
	registry := statemanager.NewInMemoryManager(newTestLogger())
	sender, _ := register(registry, "u1")
	register(registry, "u2")

	messages := &fakeMessageStore{}
	r := relay.NewMessageRelay(newTestLogger(), registry, messages)

	r.Relay(context.Background(), sender, "c1", []string{"u2"}, "hi")

	require.Eventually(t, func() bool {
		return len(messages.Saved()) == 1
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, store.MessageRecord{Content: "hi", Sender: "u1", Conversation: "c1"}, messages.Saved()[0])
}

func TestRelayPersistenceFailureWarnsSenderOnly(t *testing.T) {
	registry := statemanager.NewInMemoryManager(newTestLogger())
	sender, senderLink := register(registry, "u1")
	_, u2 := register(registry, "u2")

	messages := &fakeMessageStore{err: errors.New("disk full")}
	r := relay.NewMessageRelay(newTestLogger(), registry, messages)

	r.Relay(context.Background(), sender, "c1", []string{"u2"}, "hi")

	// Live delivery is not suppressed by the failing save.
	require.Len(t, u2.Frames(), 1)
	require.Equal(t, protocol.EventNewMessage, u2.Frames()[0].Event)

	// The sender is told the message may not be durably stored.
	require.Eventually(t, func() bool {
		frames := senderLink.Frames()
		return len(frames) == 1 && frames[0].Event == protocol.EventError
	}, time.Second, 10*time.Millisecond)
}

func TestRelaySurvivesCancelledSenderContext(t *testing.T) {
	registry := statemanager.NewInMemoryManager(newTestLogger())
	sender, _ := register(registry, "u1")
	register(registry, "u2")

	messages := &fakeMessageStore{}
	r := relay.NewMessageRelay(newTestLogger(), registry, messages)

	ctx, cancel := context.WithCancel(context.Background())
	r.Relay(ctx, sender, "c1", []string{"u2"}, "hi")
	cancel() // sender disconnects immediately after the send

	require.Eventually(t, func() bool {
		return len(messages.Saved()) == 1
	}, time.Second, 10*time.Millisecond)
}
