package app

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bonfire-gw/bonfire/internal/build"
	"github.com/bonfire-gw/bonfire/internal/config"
	"github.com/bonfire-gw/bonfire/internal/gateway"
	"github.com/bonfire-gw/bonfire/internal/logging"
	"github.com/bonfire-gw/bonfire/internal/metrics"
	"github.com/bonfire-gw/bonfire/internal/service"
	"github.com/bonfire-gw/bonfire/internal/telemetry"
	"github.com/bonfire-gw/bonfire/internal/tools"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/automaxprocs/maxprocs"
)

func Run(cmd *cobra.Command, configFile string) {
	dotEnvUsed := false
	if tools.FileExists(".env") {
		err := godotenv.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("error loading .env file")
		}
		dotEnvUsed = true
	}
	cfg, cfgMeta, err := config.GetConfig(cmd, configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error getting config")
	}

	logCloseFn, err := logging.Setup(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("error setting up logging")
	}
	defer logCloseFn()

	if cfgMeta.FileNotFound {
		log.Warn().Msg("config file not found, continue using environment and flag options")
	} else {
		absConfPath, _ := filepath.Abs(configFile)
		log.Info().Str("path", absConfPath).Msg("using config file")
	}
	if dotEnvUsed {
		log.Info().Msg("environment variables have been loaded from .env file")
	}

	if err = cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("error validating config")
	}
	if err = tools.WritePidFile(cfg.PidFile); err != nil {
		log.Fatal().Err(err).Msg("error writing PID")
	}
	_, _ = maxprocs.Set(maxprocs.Logger(func(s string, i ...any) {
		log.Info().Msgf(strings.ToLower(s), i...)
	}))

	log.Info().
		Str("version", build.Version).
		Str("runtime", runtime.Version()).
		Int("pid", os.Getpid()).
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Str("bus", cfg.Bus.Type).
		Str("presence", cfg.Presence.Type).
		Str("store", cfg.Store.Type).
		Msg("starting Bonfire gateway")

	if build.Version == "0.0.0" {
		log.Warn().Msg("running a development build of Bonfire (version 0.0.0), ensure to use release build in production")
	}

	if cfg.Prometheus.Enabled {
		if err := metrics.Init(metrics.Config{}); err != nil {
			log.Fatal().Err(err).Msg("error registering metrics")
		}
	}

	var tracerProvider *trace.TracerProvider
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err = telemetry.SetupTracing(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("error setting up opentelemetry tracing")
		}
	}

	eng, err := configureEngines(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error configuring engines")
	}

	gwConfig, err := gatewayConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating gateway config")
	}
	gw := gateway.New(gwConfig, eng.store, eng.presence, eng.bus)

	// Sessions are cancelled on shutdown before backends are closed.
	sessionsCtx, sessionsCancel := context.WithCancel(context.Background())
	defer sessionsCancel()

	mux, err := Mux(sessionsCtx, gw, cfg, eng.checks)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating HTTP mux")
	}
	addr := net.JoinHostPort(cfg.HTTP.Address, strconv.Itoa(cfg.HTTP.Port))
	server := &http.Server{
		Addr:     addr,
		Handler:  mux,
		ErrorLog: stdlog.New(&httpErrorLogWriter{log.Logger}, "", 0),
	}

	serviceCtx, serviceCancel := context.WithCancel(context.Background())
	defer serviceCancel()
	serviceManager := service.NewManager()
	serviceManager.Register(service.Func(func(ctx context.Context) error {
		log.Info().Str("address", addr).Str("websocket", handlerPrefix(cfg.WebSocket.HandlerPrefix)).Msg("serving gateway endpoints")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("error running HTTP server")
		}
		return nil
	}))
	serviceManager.Run(serviceCtx)

	logStartWarnings(cfg, cfgMeta)

	handleSignals(cmd, configFile, cfg, server, gw, sessionsCancel, serviceManager, serviceCancel, func() {
		eng.close()
		if tracerProvider != nil {
			_ = tracerProvider.Shutdown(context.Background())
		}
	})
}

func handleSignals(
	cmd *cobra.Command, configFile string, cfg config.Config, server *http.Server, gw *gateway.Gateway,
	sessionsCancel context.CancelFunc, serviceManager *service.Manager, serviceCancel context.CancelFunc,
	closeEngines func(),
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, os.Interrupt, syscall.SIGTERM)
	for {
		sig := <-sigCh
		log.Info().Msgf("signal received: %v", sig)
		switch sig {
		case syscall.SIGHUP:
			// Only log level can be changed without restart.
			newCfg, _, err := config.GetConfig(cmd, configFile)
			if err != nil {
				log.Err(err).Msg("error reading config")
				continue
			}
			zerolog.SetGlobalLevel(logging.Level(newCfg.Log.Level))
			log.Info().Str("level", newCfg.Log.Level).Msg("log level reloaded")
		case syscall.SIGINT, os.Interrupt, syscall.SIGTERM:
			log.Info().Msg("shutting down ...")
			pidFile := cfg.PidFile
			shutdownTimeout := cfg.Shutdown.Timeout.ToDuration()
			time.AfterFunc(shutdownTimeout, func() {
				tools.RemovePidFile(pidFile)
				log.Fatal().Msg("shutdown timeout reached")
			})

			// Stop accepting connections, then end running sessions so that
			// offline presence is broadcast before backends close.
			_ = server.Shutdown(context.Background())
			sessionsCancel()
			if err := gw.Drain(context.Background()); err != nil {
				log.Warn().Err(err).Msg("error draining sessions")
			}
			serviceCancel()
			_ = serviceManager.Wait()
			closeEngines()

			tools.RemovePidFile(pidFile)
			os.Exit(0)
		}
	}
}
