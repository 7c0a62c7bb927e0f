package health

import (
	"context"
	"net/http"
	"time"

	"github.com/segmentio/encoding/json"
)

// Check probes one dependency of the process.
type Check struct {
	Name string
	Func func(ctx context.Context) error
}

// Config of health check handler.
type Config struct {
	Checks []Check
	// Timeout of all checks. Zero means 5s.
	Timeout time.Duration
}

// Handler handles health endpoint.
type Handler struct {
	config Config
}

// NewHandler creates new Handler.
func NewHandler(c Config) *Handler {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return &Handler{config: c}
}

type response struct {
	Errors map[string]string `json:"errors,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.config.Timeout)
	defer cancel()

	var resp response
	for _, check := range h.config.Checks {
		if err := check.Func(ctx); err != nil {
			if resp.Errors == nil {
				resp.Errors = map[string]string{}
			}
			resp.Errors[check.Name] = err.Error()
		}
	}
	data, _ := json.Marshal(resp)
	w.Header().Set("Content-Type", "application/json")
	if len(resp.Errors) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(data)
}
