package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	last_seen_at INTEGER
);
CREATE TABLE IF NOT EXISTS chats (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	group_chat INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS chat_members (
	chat_id TEXT NOT NULL REFERENCES chats(id),
	user_id TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY (chat_id, user_id)
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	sender_id TEXT NOT NULL REFERENCES users(id),
	chat_id TEXT NOT NULL REFERENCES chats(id),
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_members_user ON chat_members(user_id);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id);
`

// SQLiteStore implements AccountSource, MembershipSource and MessageStore
// on one embedded database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ AccountSource    = (*SQLiteStore)(nil)
	_ MembershipSource = (*SQLiteStore)(nil)
	_ MessageStore     = (*SQLiteStore)(nil)
)

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With(slog.String("component", "store_sqlite")),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- AccountSource ---

func (s *SQLiteStore) FindAccount(ctx context.Context, id string) (Account, error) {
	var acc Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM users WHERE id = ?`, id,
	).Scan(&acc.ID, &acc.Name)
	if err == sql.ErrNoRows {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("find account %s: %w", id, err)
	}
	return acc, nil
}

// --- MembershipSource ---

func (s *SQLiteStore) DirectPeersOf(ctx context.Context, identity string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT peer.user_id
		FROM chat_members own
		JOIN chats c ON c.id = own.chat_id AND c.group_chat = 0
		JOIN chat_members peer ON peer.chat_id = own.chat_id
		WHERE own.user_id = ? AND peer.user_id <> ?`,
		identity, identity,
	)
	if err != nil {
		return nil, fmt.Errorf("query direct peers of %s: %w", identity, err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

func (s *SQLiteStore) MembersOf(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM chat_members WHERE chat_id = ?`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query members of %s: %w", conversationID, err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

func scanIdentities(rows *sql.Rows) ([]string, error) {
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- MessageStore ---

func (s *SQLiteStore) SaveMessage(ctx context.Context, rec MessageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (content, sender_id, chat_id, created_at) VALUES (?, ?, ?, ?)`,
		rec.Content, rec.Sender, rec.Conversation, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save message from %s: %w", rec.Sender, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, identity string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_seen_at = ? WHERE id = ?`,
		at.UnixMilli(), identity,
	)
	if err != nil {
		return fmt.Errorf("update last seen for %s: %w", identity, err)
	}
	return nil
}

// --- Fixture / provisioning surface ---
// Account and chat lifecycle management belongs to the outer application;
// these writers exist so deployments and tests can seed the store.

func (s *SQLiteStore) UpsertAccount(ctx context.Context, acc Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		acc.ID, acc.Name,
	)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", acc.ID, err)
	}
	return nil
}

func (s *SQLiteStore) CreateChat(ctx context.Context, id, name string, group bool, members ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create chat %s: %w", id, err)
	}
	defer tx.Rollback()

	groupFlag := 0
	if group {
		groupFlag = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chats (id, name, group_chat) VALUES (?, ?, ?)`,
		id, name, groupFlag,
	); err != nil {
		return fmt.Errorf("create chat %s: %w", id, err)
	}
	for _, member := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_members (chat_id, user_id) VALUES (?, ?)`,
			id, member,
		); err != nil {
			return fmt.Errorf("add member %s to chat %s: %w", member, id, err)
		}
	}
	return tx.Commit()
}

// LastSeen reads back a user's last-seen timestamp; zero time when unset.
func (s *SQLiteStore) LastSeen(ctx context.Context, identity string) (time.Time, error) {
	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seen_at FROM users WHERE id = ?`, identity,
	).Scan(&ms)
	if err == sql.ErrNoRows {
		return time.Time{}, ErrAccountNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read last seen for %s: %w", identity, err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return time.UnixMilli(ms.Int64), nil
}

// MessageCount reports how many messages a conversation holds.
func (s *SQLiteStore) MessageCount(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE chat_id = ?`, conversationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages in %s: %w", conversationID, err)
	}
	return n, nil
}
