package gateway

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bonfire-gw/bonfire/internal/codec"
	"github.com/bonfire-gw/bonfire/internal/metrics"
	"github.com/bonfire-gw/bonfire/internal/protocol"
)

var errEncode = errors.New("error encoding event")

// sink serializes writes of both session loops to the connection.
type sink struct {
	codec *codec.Codec

	mu sync.Mutex
	w  FrameWriter
}

func newSink(c *codec.Codec, w FrameWriter) *sink {
	return &sink{codec: c, w: w}
}

// Send encodes and writes event. Encoding failure is a programming error,
// it is returned wrapping errEncode and must be treated as fatal.
func (s *sink) Send(ev protocol.Event) error {
	frame, err := s.codec.EncodeEvent(ev)
	if err != nil {
		return fmt.Errorf("%w: %w", errEncode, err)
	}
	s.mu.Lock()
	err = s.w.WriteFrame(frame)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	metrics.IncEventSent(ev.Kind())
	return nil
}
