// Package origin authorizes websocket upgrade requests by Origin header.
package origin

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Checker allows requests whose Origin matches one of configured glob
// patterns. Without patterns only same-host origins are allowed.
type Checker struct {
	patterns []glob.Glob
}

func NewChecker(allowedOrigins []string) (*Checker, error) {
	var globs []glob.Glob
	for _, pattern := range allowedOrigins {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("malformed origin pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return &Checker{patterns: globs}, nil
}

// Check returns nil if request may be upgraded. Requests without Origin
// header come from non-browser clients and are always allowed.
func (c *Checker) Check(r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return nil
	}
	origin = strings.ToLower(origin)

	if len(c.patterns) == 0 {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return fmt.Errorf("malformed request Origin %s", origin)
		}
		if u.Host == strings.ToLower(r.Host) {
			return nil
		}
		return fmt.Errorf("request Origin %s does not match host %s", origin, r.Host)
	}

	for _, pattern := range c.patterns {
		if pattern.Match(origin) {
			return nil
		}
	}
	return fmt.Errorf("request Origin %s is not authorized", origin)
}

// CheckOrigin adapts Checker to websocket upgrader signature.
func (c *Checker) CheckOrigin(r *http.Request) bool {
	return c.Check(r) == nil
}
