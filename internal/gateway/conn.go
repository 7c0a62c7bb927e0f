package gateway

import (
	"errors"

	"github.com/bonfire-gw/bonfire/internal/codec"
)

// ErrConnectionClosed is returned by transports when connection was closed
// by either side. It is an expected end of session and not reported as an
// anomaly.
var ErrConnectionClosed = errors.New("connection closed")

// FrameReader is a read half of a connection. Only one goroutine reads.
type FrameReader interface {
	ReadFrame() (codec.Frame, error)
}

// FrameWriter is a write half of a connection. It is not required to be
// safe for concurrent use.
type FrameWriter interface {
	WriteFrame(frame codec.Frame) error
}

// Conn is a transport connection. Close must unblock pending ReadFrame and
// WriteFrame calls.
type Conn interface {
	FrameReader
	FrameWriter
	Close() error
}
