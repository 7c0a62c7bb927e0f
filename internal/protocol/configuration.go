// Package protocol describes the gateway wire protocol: per-connection
// configuration, client messages, server events and the entities carried
// by them.
package protocol

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Format is a wire format selected once per connection.
type Format uint8

const (
	// FormatJSON is a structured text format sent in text frames.
	FormatJSON Format = iota
	// FormatMsgpack is a compact binary format sent in binary frames.
	FormatMsgpack
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMsgpack:
		return "msgpack"
	default:
		return "unknown"
	}
}

// ParseFormat parses format name. Empty string means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack":
		return FormatMsgpack, nil
	default:
		return 0, fmt.Errorf("unknown protocol format: %q", s)
	}
}

// DefaultVersion is used when client does not ask for a particular protocol version.
const DefaultVersion = 1

// ErrTokenAlreadySet returned on attempt to capture session token twice.
var ErrTokenAlreadySet = errors.New("session token already set")

// Configuration is negotiated once per connection. Only the session token
// may change after construction, and only once.
type Configuration struct {
	version  int
	format   Format
	token    string
	hasToken bool
}

// NewConfiguration creates Configuration. Empty token means the token is
// expected to arrive later in an Authenticate message.
func NewConfiguration(version int, format Format, token string) *Configuration {
	return &Configuration{
		version:  version,
		format:   format,
		token:    token,
		hasToken: token != "",
	}
}

// ConfigurationFromQuery builds Configuration from connection URL parameters:
// version, format and token.
func ConfigurationFromQuery(q url.Values) (*Configuration, error) {
	version := DefaultVersion
	if v := q.Get("version"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("malformed protocol version: %q", v)
		}
		version = parsed
	}
	format, err := ParseFormat(q.Get("format"))
	if err != nil {
		return nil, err
	}
	return NewConfiguration(version, format, q.Get("token")), nil
}

func (c *Configuration) Version() int {
	return c.version
}

func (c *Configuration) Format() Format {
	return c.format
}

// Token returns captured session token if any.
func (c *Configuration) Token() (string, bool) {
	return c.token, c.hasToken
}

// SetToken captures session token.
func (c *Configuration) SetToken(token string) error {
	if c.hasToken {
		return ErrTokenAlreadySet
	}
	c.token = token
	c.hasToken = true
	return nil
}
