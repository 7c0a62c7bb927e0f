package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bonfire-gw/bonfire/internal/configtypes"
	"github.com/bonfire-gw/bonfire/internal/origin"
	"github.com/bonfire-gw/bonfire/internal/protocol"
)

var logLevels = map[string]struct{}{
	"none": {}, "trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {}, "fatal": {},
}

// Validate validates config and returns error if problems found.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http_server.port: %d", c.HTTP.Port)
	}
	if _, ok := logLevels[strings.ToLower(c.Log.Level)]; !ok {
		return fmt.Errorf("unknown log.level: %q", c.Log.Level)
	}
	if err := validateWebSocket(c.WebSocket); err != nil {
		return fmt.Errorf("in websocket: %w", err)
	}
	if err := validateGateway(c.Gateway); err != nil {
		return fmt.Errorf("in gateway: %w", err)
	}
	if c.Client.ConnectionLimit < 0 || c.Client.ConnectionRateLimit < 0 {
		return errors.New("client connection limits must not be negative")
	}

	switch c.Bus.Type {
	case "memory":
	case "nats":
		if c.Bus.Nats.URL == "" {
			return errors.New("bus.nats.url required for nats bus")
		}
	case "redis":
		if err := validateRedis(c.Bus.Redis); err != nil {
			return fmt.Errorf("in bus.redis: %w", err)
		}
	default:
		return fmt.Errorf("unknown bus.type: %q", c.Bus.Type)
	}

	switch c.Presence.Type {
	case "memory":
	case "redis":
		if err := validateRedis(c.Presence.Redis); err != nil {
			return fmt.Errorf("in presence.redis: %w", err)
		}
	default:
		return fmt.Errorf("unknown presence.type: %q", c.Presence.Type)
	}
	if c.Presence.Type == "memory" && c.Bus.Type != "memory" {
		// Presence transitions must be shared between nodes which share a bus.
		return errors.New("memory presence can't be used together with distributed bus")
	}

	switch c.Store.Type {
	case "memory":
	case "postgresql":
		if c.Store.PostgreSQL.DSN == "" {
			return errors.New("store.postgresql.dsn required for postgresql store")
		}
		if c.Store.PostgreSQL.MaxConns < 0 {
			return errors.New("store.postgresql.max_conns must not be negative")
		}
	default:
		return fmt.Errorf("unknown store.type: %q", c.Store.Type)
	}

	if c.Shutdown.Timeout < 0 {
		return errors.New("shutdown.timeout must not be negative")
	}
	return nil
}

func validateWebSocket(c configtypes.WebSocket) error {
	if !strings.HasPrefix(c.HandlerPrefix, "/") {
		return fmt.Errorf("handler_prefix must start with /: %q", c.HandlerPrefix)
	}
	if c.MessageSizeLimit < 0 || c.ReadBufferSize < 0 || c.WriteBufferSize < 0 {
		return errors.New("sizes must not be negative")
	}
	if c.WriteTimeout < 0 || c.PingInterval < 0 {
		return errors.New("timeouts must not be negative")
	}
	if _, err := origin.NewChecker(c.AllowedOrigins); err != nil {
		return fmt.Errorf("allowed_origins: %w", err)
	}
	return nil
}

func validateGateway(c configtypes.Gateway) error {
	if c.MaxTrackedServers < 0 {
		return errors.New("max_tracked_servers must not be negative")
	}
	if _, err := protocol.ParseReadyFields(c.ReadyFields); err != nil {
		return fmt.Errorf("ready_fields: %w", err)
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown_timeout must not be negative")
	}
	if c.SubscriptionBuffer < 0 {
		return errors.New("subscription_buffer must not be negative")
	}
	return nil
}

func validateRedis(c configtypes.Redis) error {
	if len(c.Address) == 0 {
		return errors.New("no Redis address configured")
	}
	if c.DB < 0 {
		return fmt.Errorf("invalid db: %d", c.DB)
	}
	return nil
}
