package gateway

import (
	"time"

	"github.com/bonfire-gw/bonfire/internal/protocol"
)

const (
	defaultMaxTrackedServers = 5
	defaultShutdownTimeout   = 10 * time.Second
)

// Config of Gateway.
type Config struct {
	// MaxTrackedServers is a capacity of per-connection recently subscribed
	// servers cache. Zero means 5.
	MaxTrackedServers int
	// ReadyFields are entity categories sent in Ready. Zero means all.
	ReadyFields protocol.ReadyFields
	// ShutdownTimeout bounds time between one session loop stopping and the
	// other one following it. When exceeded connection is closed forcibly.
	// Zero means 10s.
	ShutdownTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxTrackedServers <= 0 {
		c.MaxTrackedServers = defaultMaxTrackedServers
	}
	if c.ReadyFields == 0 {
		c.ReadyFields = protocol.DefaultReadyFields
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}
