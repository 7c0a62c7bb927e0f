package app

import (
	"strings"

	"github.com/bonfire-gw/bonfire/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func logStartWarnings(cfg config.Config, cfgMeta config.Meta) {
	if cfg.Store.Type == "memory" && cfg.Store.Memory.FixtureFile == "" {
		log.Warn().Msg("memory store is empty, no session token will be accepted")
	}
	if cfg.Client.ConnectionLimit == 0 {
		log.Debug().Msg("connection limit disabled")
	}
	if len(cfg.WebSocket.AllowedOrigins) == 0 {
		log.Info().Msg("no allowed origins configured, only same host connections are accepted")
	}
	if cfg.Bus.Type == "memory" {
		log.Info().Msg("memory bus used, events are not shared with other gateway nodes")
	}
	for _, key := range cfgMeta.UnknownKeys {
		log.Warn().Str("key", key).Msg("unknown key in configuration file")
	}
	for _, key := range cfgMeta.UnknownEnvs {
		log.Warn().Str("var", key).Msg("unknown var in environment")
	}
}

type httpErrorLogWriter struct {
	zerolog.Logger
}

func (w *httpErrorLogWriter) Write(data []byte) (int, error) {
	w.Logger.Warn().Msg(strings.TrimSpace(string(data)))
	return len(data), nil
}
