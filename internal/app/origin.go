package app

import (
	"net/http"

	"github.com/bonfire-gw/bonfire/internal/config"
	"github.com/bonfire-gw/bonfire/internal/origin"

	"github.com/rs/zerolog/log"
)

func getCheckOrigin(cfg config.Config) (func(r *http.Request) bool, error) {
	allowedOrigins := cfg.WebSocket.AllowedOrigins
	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		log.Warn().Msg("usage of allowed_origins * is discouraged for security reasons, consider setting exact list of origins")
		return func(r *http.Request) bool { return true }, nil
	}
	checker, err := origin.NewChecker(allowedOrigins)
	if err != nil {
		return nil, err
	}
	return func(r *http.Request) bool {
		if err := checker.Check(r); err != nil {
			log.Info().Err(err).Str("origin", r.Header.Get("Origin")).Strs("allowed_origins", allowedOrigins).Msg("request Origin is not authorized")
			return false
		}
		return true
	}, nil
}
