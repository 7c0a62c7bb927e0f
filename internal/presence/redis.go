package presence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

const (
	// KEYS[1] - user sessions set
	// ARGV[1] - session id
	registerSource = `
redis.call("sadd", KEYS[1], ARGV[1])
return redis.call("scard", KEYS[1])
`
	// KEYS[1] - user sessions set
	// ARGV[1] - session id
	deregisterSource = `
local removed = redis.call("srem", KEYS[1], ARGV[1])
if removed == 0 then
  return -1
end
return redis.call("scard", KEYS[1])
`
)

// RedisConfig is a config for RedisRegistry.
type RedisConfig struct {
	Client rueidis.Client
	Prefix string
}

// RedisRegistry keeps user sessions in Redis sets so that presence is
// shared between gateway nodes. Set mutation and cardinality check happen
// in one Lua script which makes online/offline transitions atomic.
type RedisRegistry struct {
	client     rueidis.Client
	prefix     string
	register   *rueidis.Lua
	deregister *rueidis.Lua
}

// NewRedisRegistry creates RedisRegistry.
func NewRedisRegistry(conf RedisConfig) *RedisRegistry {
	prefix := conf.Prefix
	if prefix == "" {
		prefix = "bonfire"
	}
	return &RedisRegistry{
		client:     conf.Client,
		prefix:     prefix,
		register:   rueidis.NewLuaScript(registerSource),
		deregister: rueidis.NewLuaScript(deregisterSource),
	}
}

func (r *RedisRegistry) key(userID string) string {
	return r.prefix + ".presence." + userID
}

func (r *RedisRegistry) Register(ctx context.Context, userID string) (Session, error) {
	id := uuid.NewString()
	n, err := r.register.Exec(ctx, r.client, []string{r.key(userID)}, []string{id}).AsInt64()
	if err != nil {
		return Session{}, fmt.Errorf("error registering presence: %w", err)
	}
	return Session{ID: id, First: n == 1}, nil
}

func (r *RedisRegistry) Deregister(ctx context.Context, userID string, sessionID string) (bool, error) {
	n, err := r.deregister.Exec(ctx, r.client, []string{r.key(userID)}, []string{sessionID}).AsInt64()
	if err != nil {
		return false, fmt.Errorf("error deregistering presence: %w", err)
	}
	return n == 0, nil
}

func (r *RedisRegistry) Online(ctx context.Context, userIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	cmds := make(rueidis.Commands, 0, len(userIDs))
	for _, id := range userIDs {
		cmds = append(cmds, r.client.B().Exists().Key(r.key(id)).Build())
	}
	for i, resp := range r.client.DoMulti(ctx, cmds...) {
		n, err := resp.AsInt64()
		if err != nil {
			return nil, fmt.Errorf("error checking presence: %w", err)
		}
		result[userIDs[i]] = n > 0
	}
	return result, nil
}
