package gateway

import (
	"context"
	"errors"

	"github.com/bonfire-gw/bonfire/internal/codec"
	"github.com/bonfire-gw/bonfire/internal/metrics"
	"github.com/bonfire-gw/bonfire/internal/protocol"
)

type readResult struct {
	frame codec.Frame
	err   error
}

// notify performs non-blocking send into capacity-one signal channel.
func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// readFrames pumps frames into channel until read fails or done is closed.
func (s *session) readFrames(frames chan<- readResult, done <-chan struct{}) {
	for {
		frame, err := s.conn.ReadFrame()
		select {
		case frames <- readResult{frame: frame, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// runInbound processes client commands until cancelled or read stream ends.
func (s *session) runInbound(ctx context.Context, cancel <-chan struct{}, cancelOutbound chan<- struct{}, reload chan<- struct{}) {
	defer notify(cancelOutbound)

	frames := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	go s.readFrames(frames, done)

	for {
		select {
		case <-cancel:
			return
		case <-ctx.Done():
			return
		case r := <-frames:
			if r.err != nil {
				if errors.Is(r.err, ErrConnectionClosed) {
					s.log.Debug().Msg("connection closed")
				} else {
					s.log.Warn().Err(r.err).Msg("error reading from connection")
				}
				return
			}
			msg, err := s.codec.DecodeMessage(r.frame)
			if err != nil {
				s.log.Debug().Err(err).Msg("skip undecodable message")
				continue
			}
			if err := s.handleCommand(ctx, msg, reload); err != nil {
				return
			}
		}
	}
}

// handleCommand returns error only when connection can not be used anymore.
func (s *session) handleCommand(ctx context.Context, msg protocol.ClientMessage, reload chan<- struct{}) error {
	metrics.IncCommand(msg.Kind())
	switch m := msg.(type) {
	case *protocol.BeginTyping:
		s.publishTyping(ctx, m.Channel, protocol.NewChannelStartTyping(m.Channel, s.user.ID))
	case *protocol.EndTyping:
		s.publishTyping(ctx, m.Channel, protocol.NewChannelStopTyping(m.Channel, s.user.ID))
	case *protocol.Subscribe:
		if s.state.track(m.ServerID) {
			notify(reload)
		}
	case *protocol.Ping:
		if m.Responded != nil {
			return nil
		}
		if err := s.sink.Send(protocol.NewPong(m.Data)); err != nil {
			s.logWriteError(err)
			return err
		}
	}
	return nil
}

func (s *session) publishTyping(ctx context.Context, channel string, ev protocol.Event) {
	if !s.state.isSubscribed(channel) {
		return
	}
	if err := s.gw.bus.Publish(ctx, channel, ev); err != nil {
		s.log.Warn().Err(err).Str("channel", channel).Msg("error publishing typing event")
	}
}

func (s *session) logWriteError(err error) {
	switch {
	case errors.Is(err, errEncode):
		s.log.Error().Err(err).Msg("error encoding event")
	case errors.Is(err, ErrConnectionClosed):
		s.log.Debug().Msg("connection closed while writing")
	default:
		s.log.Warn().Err(err).Msg("error writing to connection")
	}
}
