package middleware

import (
	"net/http"

	"github.com/bonfire-gw/bonfire/internal/configtypes"
	"github.com/bonfire-gw/bonfire/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// SessionCounter reports number of sessions served by node.
type SessionCounter interface {
	NumSessions() int
}

// ConnLimit rejects connection attempts once node reaches configured number
// of sessions or rate of new connections.
type ConnLimit struct {
	counter     SessionCounter
	config      configtypes.Client
	rateLimiter *rate.Limiter
}

func NewConnLimit(counter SessionCounter, cfg configtypes.Client) *ConnLimit {
	l := &ConnLimit{counter: counter, config: cfg}
	if cfg.ConnectionRateLimit > 0 {
		l.rateLimiter = rate.NewLimiter(rate.Limit(cfg.ConnectionRateLimit), cfg.ConnectionRateLimit)
	}
	return l
}

func (l *ConnLimit) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connLimit := l.config.ConnectionLimit
		if connLimit > 0 && l.counter.NumSessions() >= connLimit {
			metrics.ConnLimitReached.Inc()
			log.Warn().Int("limit", connLimit).Msg("node connection limit reached")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if l.rateLimiter != nil && !l.rateLimiter.Allow() {
			metrics.ConnRateLimitReached.Inc()
			log.Warn().Int("limit", l.config.ConnectionRateLimit).Msg("node connection rate limit reached")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		h.ServeHTTP(w, r)
	})
}
