package wstransport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bonfire-gw/bonfire/internal/codec"
	"github.com/bonfire-gw/bonfire/internal/gateway"

	"github.com/gorilla/websocket"
)

// conn adapts websocket connection to gateway.Conn. Gorilla connection
// supports one concurrent reader and one concurrent writer, which matches
// gateway usage of read and write halves.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	pingMu    sync.Mutex
	pingTimer *time.Timer
	closeOnce sync.Once
	closeCh   chan struct{}
}

func newConn(ws *websocket.Conn, writeTimeout time.Duration, pingInterval time.Duration) *conn {
	c := &conn{
		ws:           ws,
		writeTimeout: writeTimeout,
		closeCh:      make(chan struct{}),
	}
	if pingInterval > 0 {
		pongWait := pingInterval * 10 / 9
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		c.schedulePing(pingInterval)
	}
	return c
}

func (c *conn) schedulePing(interval time.Duration) {
	c.pingMu.Lock()
	defer c.pingMu.Unlock()
	select {
	case <-c.closeCh:
		return
	default:
	}
	c.pingTimer = time.AfterFunc(interval, func() {
		deadline := time.Now().Add(interval / 2)
		if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			_ = c.Close()
			return
		}
		c.schedulePing(interval)
	})
}

func (c *conn) ReadFrame() (codec.Frame, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return codec.Frame{}, mapError(err)
		}
		switch messageType {
		case websocket.TextMessage:
			return codec.Frame{Kind: codec.FrameText, Payload: data}, nil
		case websocket.BinaryMessage:
			return codec.Frame{Kind: codec.FrameBinary, Payload: data}, nil
		}
	}
}

func (c *conn) WriteFrame(frame codec.Frame) error {
	messageType := websocket.TextMessage
	if frame.Kind == codec.FrameBinary {
		messageType = websocket.BinaryMessage
	}
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.ws.WriteMessage(messageType, frame.Payload); err != nil {
		return mapError(err)
	}
	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Time{})
	}
	return nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.pingMu.Lock()
		close(c.closeCh)
		if c.pingTimer != nil {
			c.pingTimer.Stop()
		}
		c.pingMu.Unlock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// mapError turns expected end-of-connection errors into
// gateway.ErrConnectionClosed.
func mapError(err error) error {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, websocket.ErrCloseSent):
		return gateway.ErrConnectionClosed
	}
	return err
}
