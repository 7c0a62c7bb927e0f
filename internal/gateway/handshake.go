package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bonfire-gw/bonfire/internal/cache"
	"github.com/bonfire-gw/bonfire/internal/metrics"
	"github.com/bonfire-gw/bonfire/internal/protocol"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/bonfire-gw/bonfire/internal/gateway")

var (
	errNoToken        = errors.New("no session token")
	errSessionRefused = errors.New("session refused")
)

// awaitToken reads frames until Authenticate arrives. Undecodable frames and
// other messages are skipped. Returns false if stream ended first.
func (s *session) awaitToken() bool {
	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			s.log.Debug().Err(err).Msg("connection ended while waiting for token")
			return false
		}
		msg, err := s.codec.DecodeMessage(frame)
		if err != nil {
			s.log.Debug().Err(err).Msg("skip undecodable message before authentication")
			continue
		}
		auth, ok := msg.(*protocol.Authenticate)
		if !ok {
			continue
		}
		if err := s.pc.SetToken(auth.Token); err != nil {
			return false
		}
		return true
	}
}

// handshake authenticates connection, sends Ready and registers presence.
// Any error means session must end without further cleanup.
func (s *session) handshake(ctx context.Context) (err error) {
	ctx, span := tracer.Start(ctx, "gateway.handshake")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if _, ok := s.pc.Token(); !ok {
		s.awaitToken()
	}
	token, ok := s.pc.Token()
	if !ok {
		metrics.IncHandshake(metrics.HandshakeNoToken)
		if sendErr := s.sink.Send(protocol.NewErrorEvent(protocol.ErrInvalidSession)); sendErr != nil {
			s.log.Debug().Err(sendErr).Msg("error sending invalid session error")
		}
		return errNoToken
	}

	user, sessionID, err := s.gw.store.ResolveSession(ctx, token)
	if err != nil {
		metrics.IncHandshake(metrics.HandshakeRejected)
		var protoErr *protocol.Error
		if !errors.As(err, &protoErr) {
			s.log.Error().Err(err).Msg("error resolving session")
			protoErr = protocol.ErrInternal
		}
		if sendErr := s.sink.Send(protocol.NewErrorEvent(protoErr)); sendErr != nil {
			s.log.Debug().Err(sendErr).Msg("error sending authentication error")
		}
		return fmt.Errorf("%w: %w", errSessionRefused, err)
	}
	span.SetAttributes(attribute.String("user", user.ID))
	s.log = s.log.With().Str("user", user.ID).Logger()
	if err := s.gw.store.TouchSession(ctx, sessionID, time.Now()); err != nil {
		s.log.Warn().Err(err).Str("session", sessionID).Msg("error updating session last seen time")
	}

	s.user = user
	s.cache = cache.New(user.ID)
	s.state, err = newWorkerState(user.ID, s.gw.config.MaxTrackedServers)
	if err != nil {
		return err
	}
	if err := s.sink.Send(protocol.NewAuthenticated()); err != nil {
		metrics.IncHandshake(metrics.HandshakeClosed)
		return err
	}

	if err := s.ready(ctx); err != nil {
		metrics.IncHandshake(metrics.HandshakeReadyFailed)
		return err
	}

	sess, err := s.gw.presence.Register(ctx, user.ID)
	if err != nil {
		metrics.IncHandshake(metrics.HandshakeReadyFailed)
		s.log.Error().Err(err).Msg("error registering presence")
		return err
	}
	s.presence = sess
	if sess.First {
		s.broadcastPresence(ctx, true)
	}
	metrics.IncHandshake(metrics.HandshakeOK)
	s.log.Debug().Msg("session is ready")
	return nil
}

func (s *session) ready(ctx context.Context) error {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "gateway.ready")
	defer span.End()

	fields := s.gw.config.ReadyFields
	snapshot, err := s.gw.store.FetchSnapshot(ctx, s.user, fields)
	if err != nil {
		s.log.Error().Err(err).Msg("error fetching ready payload")
		return err
	}
	s.resolveOnline(ctx, snapshot.Users)
	s.cache.Populate(snapshot)
	// Inbound may gate typing on the view before outbound subscribes to the
	// bus. Pending Reset is kept for outbound.
	s.cache.Refresh(nil)
	s.state.setSubscribed(s.cache.Subscriptions().Topics())
	span.SetAttributes(
		attribute.Int("users", len(snapshot.Users)),
		attribute.Int("servers", len(snapshot.Servers)),
		attribute.Int("channels", len(snapshot.Channels)),
	)
	if err := s.sink.Send(protocol.NewReady(snapshot, fields)); err != nil {
		if errors.Is(err, errEncode) {
			s.log.Error().Err(err).Msg("error encoding ready")
		}
		return err
	}
	metrics.ObserveReady(started)
	return nil
}

// resolveOnline sets online flag of users. The connecting user is online by
// definition. Presence lookup failure leaves flags unset.
func (s *session) resolveOnline(ctx context.Context, users []protocol.User) {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		if u.ID != s.user.ID {
			ids = append(ids, u.ID)
		}
	}
	online := map[string]bool{}
	if len(ids) > 0 {
		var err error
		online, err = s.gw.presence.Online(ctx, ids)
		if err != nil {
			s.log.Warn().Err(err).Msg("error resolving presence of ready users")
		}
	}
	for i := range users {
		users[i].Online = users[i].ID == s.user.ID || online[users[i].ID]
	}
}

func (s *session) broadcastPresence(ctx context.Context, online bool) {
	if err := s.gw.bus.Publish(ctx, s.user.ID, protocol.NewPresenceUpdate(s.user.ID, online)); err != nil {
		s.log.Warn().Err(err).Bool("online", online).Msg("error publishing presence update")
		return
	}
	metrics.IncPresenceBroadcast(online)
}
