package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/bonfire-gw/bonfire/internal/bus"
	"github.com/bonfire-gw/bonfire/internal/config"
	"github.com/bonfire-gw/bonfire/internal/configtypes"
	"github.com/bonfire-gw/bonfire/internal/health"
	"github.com/bonfire-gw/bonfire/internal/presence"
	"github.com/bonfire-gw/bonfire/internal/redisshard"
	"github.com/bonfire-gw/bonfire/internal/store"
	"github.com/bonfire-gw/bonfire/internal/tools"

	"github.com/redis/rueidis"
	"github.com/rs/zerolog/log"
)

// engines are backends shared by all sessions of node.
type engines struct {
	bus      bus.Bus
	presence presence.Registry
	store    store.Store
	checks   []health.Check
	closers  []func()
}

// close releases backends in reverse order of creation.
func (e *engines) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func configureEngines(ctx context.Context, cfg config.Config) (*engines, error) {
	e := &engines{}
	ok := false
	defer func() {
		if !ok {
			e.close()
		}
	}()
	if err := e.configureStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("error creating store: %w", err)
	}
	if err := e.configureBus(cfg); err != nil {
		return nil, fmt.Errorf("error creating bus: %w", err)
	}
	if err := e.configurePresence(cfg); err != nil {
		return nil, fmt.Errorf("error creating presence registry: %w", err)
	}
	ok = true
	return e, nil
}

func (e *engines) configureStore(ctx context.Context, cfg config.Config) error {
	switch cfg.Store.Type {
	case "memory":
		st, err := store.NewMemoryStoreFromFile(cfg.Store.Memory.FixtureFile)
		if err != nil {
			return err
		}
		event := log.Info().Str("store_type", "memory")
		if cfg.Store.Memory.FixtureFile != "" {
			event = event.Str("fixture_file", cfg.Store.Memory.FixtureFile)
		}
		event.Msg("initializing store")
		e.store = st
	case "postgresql":
		st, err := store.NewPostgresStore(ctx, store.PostgresConfig{
			DSN:      cfg.Store.PostgreSQL.DSN,
			MaxConns: int32(cfg.Store.PostgreSQL.MaxConns),
		})
		if err != nil {
			return err
		}
		e.closers = append(e.closers, st.Close)
		log.Info().Str("store_type", "postgresql").Strs("dsn", tools.RedactedLogURLs(cfg.Store.PostgreSQL.DSN)).Msg("initializing store")
		if cfg.Store.PostgreSQL.Migrate {
			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("error migrating schema: %w", err)
			}
			log.Info().Msg("postgresql schema migrated")
		}
		e.store = st
		e.checks = append(e.checks, health.Check{Name: "store", Func: st.Ping})
	default:
		return fmt.Errorf("unknown store type: %s", cfg.Store.Type)
	}
	return nil
}

func (e *engines) configureBus(cfg config.Config) error {
	bufferSize := cfg.Gateway.SubscriptionBuffer
	switch cfg.Bus.Type {
	case "memory":
		e.bus = bus.NewMemoryBus(bus.MemoryConfig{BufferSize: bufferSize})
	case "nats":
		b, err := bus.NewNatsBus(bus.NatsConfig{
			URL:        cfg.Bus.Nats.URL,
			Prefix:     cfg.Bus.Nats.Prefix,
			BufferSize: bufferSize,
		})
		if err != nil {
			return err
		}
		e.closers = append(e.closers, func() { _ = b.Close() })
		e.checks = append(e.checks, health.Check{Name: "bus", Func: b.Ping})
		e.bus = b
	case "redis":
		client, err := e.redisClient(cfg.Bus.Redis)
		if err != nil {
			return err
		}
		e.checks = append(e.checks, health.Check{Name: "bus", Func: redisPing(client)})
		e.bus = bus.NewRedisBus(bus.RedisConfig{
			Client:     client,
			Prefix:     cfg.Bus.Redis.Prefix,
			BufferSize: bufferSize,
		})
	default:
		return fmt.Errorf("unknown bus type: %s", cfg.Bus.Type)
	}
	log.Info().Str("bus_type", cfg.Bus.Type).Int("subscription_buffer", bufferSize).Msg("initializing bus")
	return nil
}

func (e *engines) configurePresence(cfg config.Config) error {
	switch cfg.Presence.Type {
	case "memory":
		e.presence = presence.NewMemoryRegistry()
	case "redis":
		client, err := e.redisClient(cfg.Presence.Redis)
		if err != nil {
			return err
		}
		e.checks = append(e.checks, health.Check{Name: "presence", Func: redisPing(client)})
		e.presence = presence.NewRedisRegistry(presence.RedisConfig{
			Client: client,
			Prefix: cfg.Presence.Redis.Prefix,
		})
	default:
		return fmt.Errorf("unknown presence type: %s", cfg.Presence.Type)
	}
	log.Info().Str("presence_type", cfg.Presence.Type).Msg("initializing presence registry")
	return nil
}

func (e *engines) redisClient(conf configtypes.Redis) (rueidis.Client, error) {
	client, err := redisshard.NewClient(conf)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, client.Close)
	log.Info().Str("address", strings.Join(tools.RedactedLogURLs(conf.Address...), ",")).Msg("redis client created")
	return client, nil
}

func redisPing(client rueidis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Do(ctx, client.B().Ping().Build()).Error()
	}
}
