package app

import (
	"context"
	"net/http"
	"strings"

	"github.com/bonfire-gw/bonfire/internal/config"
	"github.com/bonfire-gw/bonfire/internal/gateway"
	"github.com/bonfire-gw/bonfire/internal/health"
	"github.com/bonfire-gw/bonfire/internal/middleware"
	"github.com/bonfire-gw/bonfire/internal/protocol"
	"github.com/bonfire-gw/bonfire/internal/wstransport"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Mux returns a mux with gateway WebSocket endpoint and enabled internal
// endpoints. Sessions run within ctx.
func Mux(ctx context.Context, gw *gateway.Gateway, cfg config.Config, checks []health.Check) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	var commonMiddlewares []alice.Constructor
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		commonMiddlewares = append(commonMiddlewares, middleware.LogRequest)
	}
	if cfg.Prometheus.Enabled {
		commonMiddlewares = append(commonMiddlewares, middleware.HTTPServerInstrumentation)
	}
	basicChain := alice.New(commonMiddlewares...)

	checkOrigin, err := getCheckOrigin(cfg)
	if err != nil {
		return nil, err
	}
	connMiddlewares := append([]alice.Constructor{}, commonMiddlewares...)
	if cfg.Client.ConnectionLimit > 0 || cfg.Client.ConnectionRateLimit > 0 {
		connMiddlewares = append(connMiddlewares, middleware.NewConnLimit(gw, cfg.Client).Middleware)
	}
	connMiddlewares = append(connMiddlewares, middleware.Get)
	connChain := alice.New(connMiddlewares...)

	mux.Handle(handlerPrefix(cfg.WebSocket.HandlerPrefix), connChain.Then(wstransport.NewHandler(ctx, gw, websocketHandlerConfig(cfg, checkOrigin))))

	if cfg.Prometheus.Enabled {
		mux.Handle(handlerPrefix(cfg.Prometheus.HandlerPrefix), basicChain.Then(promhttp.Handler()))
	}
	if cfg.Health.Enabled {
		mux.Handle(handlerPrefix(cfg.Health.HandlerPrefix), basicChain.Then(health.NewHandler(health.Config{Checks: checks})))
	}
	return mux, nil
}

func handlerPrefix(prefix string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return "/"
	}
	return prefix
}

func websocketHandlerConfig(cfg config.Config, checkOrigin func(r *http.Request) bool) wstransport.Config {
	return wstransport.Config{
		ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
		MessageSizeLimit: int64(cfg.WebSocket.MessageSizeLimit),
		WriteTimeout:     cfg.WebSocket.WriteTimeout.ToDuration(),
		PingInterval:     cfg.WebSocket.PingInterval.ToDuration(),
		Compression:      cfg.WebSocket.Compression,
		CheckOrigin:      checkOrigin,
	}
}

func gatewayConfig(cfg config.Config) (gateway.Config, error) {
	readyFields, err := protocol.ParseReadyFields(cfg.Gateway.ReadyFields)
	if err != nil {
		return gateway.Config{}, err
	}
	return gateway.Config{
		MaxTrackedServers: cfg.Gateway.MaxTrackedServers,
		ReadyFields:       readyFields,
		ShutdownTimeout:   cfg.Gateway.ShutdownTimeout.ToDuration(),
	}, nil
}
