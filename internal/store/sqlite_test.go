package store_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Omprakash1353/Social-Media-Server/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	s, err := store.Open(filepath.Join(t.TempDir(), "gateway.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSocialGraph(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	for _, acc := range []store.Account{
		{ID: "u1", Name: "Alice"},
		{ID: "u2", Name: "Bob"},
		{ID: "u3", Name: "Carol"},
	} {
		require.NoError(t, s.UpsertAccount(ctx, acc))
	}
	// Two direct chats and one group chat. Group members must not count as
	// direct peers.
	require.NoError(t, s.CreateChat(ctx, "c1", "", false, "u1", "u2"))
	require.NoError(t, s.CreateChat(ctx, "c2", "", false, "u1", "u3"))
	require.NoError(t, s.CreateChat(ctx, "g1", "weekend plans", true, "u1", "u2", "u3"))
}

func TestFindAccount(t *testing.T) {
	s := newTestStore(t)
	seedSocialGraph(t, s)
	ctx := context.Background()

	acc, err := s.FindAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, store.Account{ID: "u1", Name: "Alice"}, acc)

	_, err = s.FindAccount(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrAccountNotFound)
}

func TestDirectPeersExcludeGroupsAndSelf(t *testing.T) {
	s := newTestStore(t)
	seedSocialGraph(t, s)

	peers, err := s.DirectPeersOf(context.Background(), "u1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u2", "u3"}, peers)

	// u2 and u3 only share the group chat, so they are not direct peers.
	peers, err = s.DirectPeersOf(context.Background(), "u2")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u1"}, peers)
}

func TestMembersOf(t *testing.T) {
	s := newTestStore(t)
	seedSocialGraph(t, s)

	members, err := s.MembersOf(context.Background(), "g1")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"u1", "u2", "u3"}, members)

	members, err = s.MembersOf(context.Background(), "missing")
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestSaveMessage(t *testing.T) {
	s := newTestStore(t)
	seedSocialGraph(t, s)
	ctx := context.Background()

	err := s.SaveMessage(ctx, store.MessageRecord{Content: "hi", Sender: "u1", Conversation: "c1"})
	require.NoError(t, err)

	n, err := s.MessageCount(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestUpdateLastSeen(t *testing.T) {
	s := newTestStore(t)
	seedSocialGraph(t, s)
	ctx := context.Background()

	before, err := s.LastSeen(ctx, "u1")
	require.NoError(t, err)
	require.True(t, before.IsZero())

	at := time.Now()
	require.NoError(t, s.UpdateLastSeen(ctx, "u1", at))

	got, err := s.LastSeen(ctx, "u1")
	require.NoError(t, err)
	require.WithinDuration(t, at, got, time.Second)
}
