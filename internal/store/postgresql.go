package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/bonfire-gw/bonfire/internal/protocol"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresConfig is a config for PostgresStore.
type PostgresConfig struct {
	DSN string
	// MaxConns limits pool size, zero means pgxpool default.
	MaxConns int32
}

// PostgresStore is a Store on top of PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates pool and checks database is reachable.
func NewPostgresStore(ctx context.Context, config PostgresConfig) (*PostgresStore, error) {
	if config.DSN == "" {
		return nil, errors.New("dsn is required")
	}
	conf, err := pgxpool.ParseConfig(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("error parsing postgresql DSN: %w", err)
	}
	if config.MaxConns > 0 {
		conf.MaxConns = config.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("error creating postgresql pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// Migrate creates tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) ResolveSession(ctx context.Context, token string) (protocol.User, string, error) {
	var (
		user      protocol.User
		sessionID string
	)
	err := s.pool.QueryRow(ctx, `
SELECT s.id, u.id, u.username, u.discriminator, u.display_name, u.flags
FROM sessions s JOIN users u ON u.id = s.user_id
WHERE s.token = $1`, token).Scan(
		&sessionID, &user.ID, &user.Username, &user.Discriminator, &user.DisplayName, &user.Flags,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return protocol.User{}, "", protocol.ErrInvalidSession
	}
	if err != nil {
		return protocol.User{}, "", fmt.Errorf("error resolving session: %w", err)
	}
	if err := checkOnboarded(user); err != nil {
		return protocol.User{}, "", err
	}
	return user, sessionID, nil
}

func (s *PostgresStore) TouchSession(ctx context.Context, sessionID string, now time.Time) error {
	_, err := s.pool.Exec(ctx, "UPDATE sessions SET last_seen = $2 WHERE id = $1", sessionID, now)
	return err
}

func (s *PostgresStore) FetchSnapshot(ctx context.Context, user protocol.User, fields protocol.ReadyFields) (protocol.Snapshot, error) {
	var (
		snapshot protocol.Snapshot
		err      error
	)
	snapshot.Members, err = s.members(ctx, user.ID)
	if err != nil {
		return snapshot, fmt.Errorf("error fetching members: %w", err)
	}
	serverIDs := make([]string, 0, len(snapshot.Members))
	for _, m := range snapshot.Members {
		serverIDs = append(serverIDs, m.ID.Server)
	}
	snapshot.Servers, err = s.servers(ctx, serverIDs)
	if err != nil {
		return snapshot, fmt.Errorf("error fetching servers: %w", err)
	}
	snapshot.Channels, err = s.channels(ctx, user.ID, serverIDs)
	if err != nil {
		return snapshot, fmt.Errorf("error fetching channels: %w", err)
	}
	if fields.Has(protocol.FieldUsers) {
		snapshot.Users, err = s.users(ctx, user.ID, snapshot.Channels)
		if err != nil {
			return snapshot, fmt.Errorf("error fetching users: %w", err)
		}
	}
	if fields.Has(protocol.FieldEmojis) {
		snapshot.Emojis, err = s.emojis(ctx, serverIDs)
		if err != nil {
			return snapshot, fmt.Errorf("error fetching emojis: %w", err)
		}
	}
	return snapshot, nil
}

func (s *PostgresStore) members(ctx context.Context, userID string) ([]protocol.Member, error) {
	rows, err := s.pool.Query(ctx, `
SELECT server_id, user_id, joined_at, nickname, roles FROM members
WHERE user_id = $1 ORDER BY server_id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (protocol.Member, error) {
		var (
			m        protocol.Member
			joinedAt time.Time
		)
		err := row.Scan(&m.ID.Server, &m.ID.User, &joinedAt, &m.Nickname, &m.Roles)
		m.JoinedAt = joinedAt.UTC().Format(time.RFC3339)
		return m, err
	})
}

func (s *PostgresStore) servers(ctx context.Context, ids []string) ([]protocol.Server, error) {
	rows, err := s.pool.Query(ctx, `
SELECT s.id, s.owner_id, s.name, s.description, s.default_permissions,
	COALESCE(array_agg(c.id ORDER BY c.id) FILTER (WHERE c.id IS NOT NULL), '{}')
FROM servers s LEFT JOIN channels c ON c.server_id = s.id
WHERE s.id = ANY($1)
GROUP BY s.id ORDER BY s.id`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (protocol.Server, error) {
		var srv protocol.Server
		err := row.Scan(&srv.ID, &srv.Owner, &srv.Name, &srv.Description, &srv.DefaultPermissions, &srv.Channels)
		return srv, err
	})
}

func (s *PostgresStore) channels(ctx context.Context, userID string, serverIDs []string) ([]protocol.Channel, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, channel_type, COALESCE(server_id, ''), name, owner_id, user_id, recipients FROM channels
WHERE server_id = ANY($2)
	OR (channel_type = 'SavedMessages' AND user_id = $1)
	OR (channel_type IN ('DirectMessage', 'Group') AND $1 = ANY(recipients))
ORDER BY id`, userID, serverIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (protocol.Channel, error) {
		var ch protocol.Channel
		err := row.Scan(&ch.ID, &ch.ChannelType, &ch.Server, &ch.Name, &ch.Owner, &ch.User, &ch.Recipients)
		return ch, err
	})
}

func (s *PostgresStore) users(ctx context.Context, userID string, channels []protocol.Channel) ([]protocol.User, error) {
	rows, err := s.pool.Query(ctx, "SELECT other_id, status FROM relationships WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	relations := map[string]string{}
	var otherID, status string
	_, err = pgx.ForEachRow(rows, []any{&otherID, &status}, func() error {
		relations[otherID] = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := referencedUsers(userID, relations, channels)
	rows, err = s.pool.Query(ctx, `
SELECT id, username, discriminator, display_name, flags FROM users
WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (protocol.User, error) {
		var u protocol.User
		err := row.Scan(&u.ID, &u.Username, &u.Discriminator, &u.DisplayName, &u.Flags)
		if u.ID == userID {
			u.Relationship = RelationshipUser
		} else {
			u.Relationship = relations[u.ID]
		}
		return u, err
	})
}

func (s *PostgresStore) emojis(ctx context.Context, serverIDs []string) ([]protocol.Emoji, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, server_id, creator_id, name FROM emojis
WHERE server_id = ANY($1) ORDER BY id`, serverIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (protocol.Emoji, error) {
		e := protocol.Emoji{Parent: protocol.EmojiParent{Type: "Server"}}
		err := row.Scan(&e.ID, &e.Parent.ID, &e.CreatorID, &e.Name)
		return e, err
	})
}
