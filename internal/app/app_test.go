package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bonfire-gw/bonfire/internal/codec"
	"github.com/bonfire-gw/bonfire/internal/config"
	"github.com/bonfire-gw/bonfire/internal/gateway"
	"github.com/bonfire-gw/bonfire/internal/protocol"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Memory.FixtureFile = "../store/testdata/fixture.yaml"
	cfg.Health.Enabled = true
	cfg.Prometheus.Enabled = true
	cfg.WebSocket.AllowedOrigins = []string{"https://*.example.com"}
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) (*httptest.Server, *gateway.Gateway) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	eng, err := configureEngines(ctx, cfg)
	require.NoError(t, err)
	gwConfig, err := gatewayConfig(cfg)
	require.NoError(t, err)
	gw := gateway.New(gwConfig, eng.store, eng.presence, eng.bus)
	mux, err := Mux(ctx, gw, cfg, eng.checks)
	require.NoError(t, err)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		cancel()
		eng.close()
	})
	return server, gw
}

func wsURL(server *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + path
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	res, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = res.Body.Close() }()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res.StatusCode, string(data)
}

func TestMuxGatewaySession(t *testing.T) {
	server, gw := newTestServer(t, testConfig())

	header := http.Header{}
	header.Set("Origin", "https://app.example.com")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(server, "/connection/websocket?format=json&token=abc"), header)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	c := codec.New(protocol.FormatJSON)
	read := func() protocol.Event {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		ev, err := c.DecodeEvent(codec.Frame{Kind: codec.FrameText, Payload: data})
		require.NoError(t, err)
		return ev
	}
	require.IsType(t, &protocol.Authenticated{}, read())
	ready, ok := read().(*protocol.Ready)
	require.True(t, ok)
	require.NotEmpty(t, ready.Users)
	require.Eventually(t, func() bool {
		return gw.NumSessions() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMuxRejectsForeignOrigin(t *testing.T) {
	server, _ := newTestServer(t, testConfig())
	header := http.Header{}
	header.Set("Origin", "https://evil.com")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "/connection/websocket?token=abc"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestMuxMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t, testConfig())
	res, err := http.Post(server.URL+"/connection/websocket", "application/json", nil)
	require.NoError(t, err)
	_ = res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestMuxInternalEndpoints(t *testing.T) {
	server, _ := newTestServer(t, testConfig())

	status, body := get(t, server.URL+"/health")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{}`, body)

	status, body = get(t, server.URL+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "go_goroutines")
}

func TestMuxInternalEndpointsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Health.Enabled = false
	cfg.Prometheus.Enabled = false
	server, _ := newTestServer(t, cfg)
	status, _ := get(t, server.URL+"/health")
	require.Equal(t, http.StatusNotFound, status)
}

func TestConfigureEnginesErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Store.Memory.FixtureFile = "testdata/missing.yaml"
	_, err := configureEngines(context.Background(), cfg)
	require.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Bus.Type = "kafka"
	_, err = configureEngines(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown bus type")
}

func TestGatewayConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Gateway.ReadyFields = []string{"users", "emojis"}
	gwConfig, err := gatewayConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, protocol.FieldUsers|protocol.FieldEmojis, gwConfig.ReadyFields)
	require.Equal(t, 5, gwConfig.MaxTrackedServers)
	require.Equal(t, 10*time.Second, gwConfig.ShutdownTimeout)

	cfg.Gateway.ReadyFields = []string{"stickers"}
	_, err = gatewayConfig(cfg)
	require.Error(t, err)
}

func TestHandlerPrefix(t *testing.T) {
	require.Equal(t, "/", handlerPrefix(""))
	require.Equal(t, "/", handlerPrefix("/"))
	require.Equal(t, "/metrics", handlerPrefix("/metrics/"))
}
