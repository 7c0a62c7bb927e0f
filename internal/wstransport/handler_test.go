package wstransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bonfire-gw/bonfire/internal/bus"
	"github.com/bonfire-gw/bonfire/internal/codec"
	"github.com/bonfire-gw/bonfire/internal/gateway"
	"github.com/bonfire-gw/bonfire/internal/presence"
	"github.com/bonfire-gw/bonfire/internal/protocol"
	"github.com/bonfire-gw/bonfire/internal/store"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, ctx context.Context) (*httptest.Server, *presence.MemoryRegistry) {
	st := store.NewMemoryStore()
	st.AddUser(protocol.User{ID: "u1", Username: "alice"})
	st.AddSession("abc", "s1", "u1")
	registry := presence.NewMemoryRegistry()
	gw := gateway.New(gateway.Config{}, st, registry, bus.NewMemoryBus(bus.MemoryConfig{}))
	handler := NewHandler(ctx, gw, Config{
		WriteTimeout:     time.Second,
		PingInterval:     time.Minute,
		MessageSizeLimit: 65536,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, registry
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/?" + query
}

func readEvent(t *testing.T, ws *websocket.Conn, c *codec.Codec) protocol.Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := ws.ReadMessage()
	require.NoError(t, err)
	kind := codec.FrameText
	if messageType == websocket.BinaryMessage {
		kind = codec.FrameBinary
	}
	ev, err := c.DecodeEvent(codec.Frame{Kind: kind, Payload: data})
	require.NoError(t, err)
	return ev
}

func writeMessage(t *testing.T, ws *websocket.Conn, c *codec.Codec, msg protocol.ClientMessage) {
	t.Helper()
	frame, err := c.EncodeMessage(msg)
	require.NoError(t, err)
	messageType := websocket.TextMessage
	if frame.Kind == codec.FrameBinary {
		messageType = websocket.BinaryMessage
	}
	require.NoError(t, ws.WriteMessage(messageType, frame.Payload))
}

func TestHandlerBadQuery(t *testing.T) {
	server, _ := newTestServer(t, context.Background())
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "format=xml"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(server, "version=abc"), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerJSONSession(t *testing.T) {
	server, registry := newTestServer(t, context.Background())
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, "version=1&format=json"), nil)
	require.NoError(t, err)
	c := codec.New(protocol.FormatJSON)

	writeMessage(t, ws, c, protocol.NewAuthenticate("abc"))
	require.IsType(t, &protocol.Authenticated{}, readEvent(t, ws, c))
	require.IsType(t, &protocol.Ready{}, readEvent(t, ws, c))

	writeMessage(t, ws, c, protocol.NewPing(protocol.NumberPing(42)))
	pong, ok := readEvent(t, ws, c).(*protocol.Pong)
	require.True(t, ok)
	require.Equal(t, uint64(42), pong.Data.Number)
	require.Equal(t, 1, registry.NumSessions("u1"))

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool {
		return registry.NumSessions("u1") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandlerMsgpackInlineToken(t *testing.T) {
	server, _ := newTestServer(t, context.Background())
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, "format=msgpack&token=abc"), nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()
	c := codec.New(protocol.FormatMsgpack)

	require.IsType(t, &protocol.Authenticated{}, readEvent(t, ws, c))
	require.IsType(t, &protocol.Ready{}, readEvent(t, ws, c))

	writeMessage(t, ws, c, protocol.NewPing(protocol.BinaryPing([]byte{1, 2, 3})))
	pong, ok := readEvent(t, ws, c).(*protocol.Pong)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, pong.Data.Binary)
}

func TestHandlerInvalidSession(t *testing.T) {
	server, _ := newTestServer(t, context.Background())
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, "token=wrong"), nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()
	c := codec.New(protocol.FormatJSON)

	ev, ok := readEvent(t, ws, c).(*protocol.ErrorEvent)
	require.True(t, ok)
	require.ErrorIs(t, ev.Data, protocol.ErrInvalidSession)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = ws.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
}

func TestHandlerShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	server, _ := newTestServer(t, ctx)
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	cancel()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = ws.ReadMessage()
	require.Error(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMapError(t *testing.T) {
	require.ErrorIs(t, mapError(&websocket.CloseError{Code: websocket.CloseGoingAway}), gateway.ErrConnectionClosed)
	require.ErrorIs(t, mapError(websocket.ErrCloseSent), gateway.ErrConnectionClosed)
	other := websocket.ErrBadHandshake
	require.Equal(t, other, mapError(other))
}
