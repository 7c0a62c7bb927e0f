// Package gateway runs per-connection chat gateway sessions: authentication,
// Ready payload, client commands and event forwarding.
package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bonfire-gw/bonfire/internal/bus"
	"github.com/bonfire-gw/bonfire/internal/cache"
	"github.com/bonfire-gw/bonfire/internal/codec"
	"github.com/bonfire-gw/bonfire/internal/metrics"
	"github.com/bonfire-gw/bonfire/internal/presence"
	"github.com/bonfire-gw/bonfire/internal/protocol"
	"github.com/bonfire-gw/bonfire/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Gateway serves sessions over established connections.
type Gateway struct {
	config   Config
	store    store.Store
	presence presence.Registry
	bus      bus.Bus

	numSessions atomic.Int64
}

// New creates Gateway.
func New(config Config, st store.Store, registry presence.Registry, b bus.Bus) *Gateway {
	return &Gateway{
		config:   config.withDefaults(),
		store:    st,
		presence: registry,
		bus:      b,
	}
}

// NumSessions returns number of sessions which passed handshake and did not
// finish yet.
func (g *Gateway) NumSessions() int {
	return int(g.numSessions.Load())
}

// Drain waits until all sessions finished their cleanup. It is used on
// shutdown after sessions context was cancelled.
func (g *Gateway) Drain(ctx context.Context) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for g.NumSessions() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

type session struct {
	gw    *Gateway
	conn  Conn
	codec *codec.Codec
	pc    *protocol.Configuration
	sink  *sink
	log   zerolog.Logger

	user     protocol.User
	cache    *cache.Cache
	state    *workerState
	presence presence.Session
}

// Serve runs session over conn until it ends and closes conn. Returned error
// tells why session could not start, nil is returned for sessions ended
// after successful handshake.
func (g *Gateway) Serve(ctx context.Context, conn Conn, pc *protocol.Configuration) error {
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c := codec.New(pc.Format())
	s := &session{
		gw:    g,
		conn:  conn,
		codec: c,
		pc:    pc,
		sink:  newSink(c, conn),
		log:   log.With().Str("conn", uuid.NewString()).Str("format", c.Format().String()).Logger(),
	}
	if err := s.handshake(ctx); err != nil {
		s.log.Debug().Err(err).Msg("handshake failed")
		return err
	}

	g.numSessions.Add(1)
	metrics.SessionsActive.Inc()
	defer func() {
		g.numSessions.Add(-1)
		metrics.SessionsActive.Dec()
	}()

	s.run(ctx)
	s.cleanup(ctx)
	return nil
}

// run runs inbound and outbound loops. It returns when both loops stopped or
// when shutdown timeout elapsed after the first of them stopped.
func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reload := make(chan struct{}, 1)
	cancelInbound := make(chan struct{}, 1)
	cancelOutbound := make(chan struct{}, 1)

	stopped := make(chan struct{}, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer func() { stopped <- struct{}{} }()
		s.runInbound(ctx, cancelInbound, cancelOutbound, reload)
	}()
	go func() {
		defer wg.Done()
		defer func() { stopped <- struct{}{} }()
		s.runOutbound(ctx, cancelOutbound, cancelInbound, reload)
	}()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	<-stopped
	timer := time.NewTimer(s.gw.config.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		metrics.ShutdownTimeoutsTotal.Inc()
		s.log.Warn().Dur("timeout", s.gw.config.ShutdownTimeout).Msg("session loop did not stop in time, closing connection")
		cancel()
		_ = s.conn.Close()
	}
}

// cleanup deregisters presence and broadcasts offline if this was the last
// session of user.
func (s *session) cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.gw.config.ShutdownTimeout)
	defer cancel()
	last, err := s.gw.presence.Deregister(ctx, s.user.ID, s.presence.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("error deregistering presence")
		return
	}
	if last {
		s.broadcastPresence(ctx, false)
	}
	s.log.Debug().Msg("session finished")
}
