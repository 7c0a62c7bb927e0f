// Package wstransport accepts gateway connections over WebSocket.
package wstransport

import (
	"context"
	"net/http"
	"time"

	"github.com/bonfire-gw/bonfire/internal/gateway"
	"github.com/bonfire-gw/bonfire/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Config represents config for Handler.
type Config struct {
	// ReadBufferSize is a parameter that is used for websocket Upgrader.
	// If set to zero reasonable default value will be used.
	ReadBufferSize int
	// WriteBufferSize is a parameter that is used for websocket Upgrader.
	// If set to zero reasonable default value will be used.
	WriteBufferSize int
	// MessageSizeLimit sets maximum size of incoming message in bytes.
	MessageSizeLimit int64
	// WriteTimeout is a deadline of one frame write.
	WriteTimeout time.Duration
	// PingInterval sets interval of server pings. Connection is closed when
	// client does not answer with pong.
	PingInterval time.Duration
	// Compression allows negotiating permessage-deflate.
	Compression bool
	// CheckOrigin func to provide custom origin check logic.
	// nil means allow all origins.
	CheckOrigin func(r *http.Request) bool
}

// Server runs sessions over established connections.
type Server interface {
	Serve(ctx context.Context, conn gateway.Conn, pc *protocol.Configuration) error
}

// Handler upgrades HTTP requests to WebSocket and serves gateway sessions.
// Protocol configuration comes from query string: version, format and
// optional token.
type Handler struct {
	server   Server
	config   Config
	upgrader websocket.Upgrader
	ctx      context.Context
}

// NewHandler creates Handler. Sessions run within ctx: once it is done
// handler refuses new connections and running sessions end.
func NewHandler(ctx context.Context, server Server, config Config) *Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:    config.ReadBufferSize,
		WriteBufferSize:   config.WriteBufferSize,
		EnableCompression: config.Compression,
	}
	if config.CheckOrigin != nil {
		upgrader.CheckOrigin = config.CheckOrigin
	} else {
		upgrader.CheckOrigin = func(r *http.Request) bool {
			// Allow all connections.
			return true
		}
	}
	return &Handler{server: server, config: config, upgrader: upgrader, ctx: ctx}
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(rw, "shutting down", http.StatusServiceUnavailable)
		return
	}

	pc, err := protocol.ConfigurationFromQuery(r.URL.Query())
	if err != nil {
		log.Debug().Err(err).Str("query", r.URL.RawQuery).Msg("bad gateway protocol configuration")
		http.Error(rw, err.Error(), http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade error")
		return
	}
	if h.config.MessageSizeLimit > 0 {
		ws.SetReadLimit(h.config.MessageSizeLimit)
	}
	c := newConn(ws, h.config.WriteTimeout, h.config.PingInterval)

	started := time.Now()
	log.Debug().Str("format", pc.Format().String()).Int("version", pc.Version()).Msg("gateway connection established")
	err = h.server.Serve(h.ctx, c, pc)
	log.Debug().Err(err).Dur("duration", time.Since(started)).Msg("gateway connection completed")
}
