package configtypes

type HTTPServer struct {
	// Address to bind HTTP server to.
	Address string `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	// Port to bind HTTP server to.
	Port int `mapstructure:"port" json:"port" yaml:"port" toml:"port"`
}

type Log struct {
	// Level is a log level: trace, debug, info, warn, error, fatal or none.
	Level string `mapstructure:"level" json:"level" yaml:"level" toml:"level"`
	// File is a path to log file. When empty logs go to STDOUT.
	File string `mapstructure:"file" json:"file" yaml:"file" toml:"file"`
}

// WebSocket transport options.
type WebSocket struct {
	HandlerPrefix    string   `mapstructure:"handler_prefix" json:"handler_prefix" yaml:"handler_prefix" toml:"handler_prefix"`
	ReadBufferSize   int      `mapstructure:"read_buffer_size" json:"read_buffer_size" yaml:"read_buffer_size" toml:"read_buffer_size"`
	WriteBufferSize  int      `mapstructure:"write_buffer_size" json:"write_buffer_size" yaml:"write_buffer_size" toml:"write_buffer_size"`
	MessageSizeLimit int      `mapstructure:"message_size_limit" json:"message_size_limit" yaml:"message_size_limit" toml:"message_size_limit"`
	WriteTimeout     Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
	PingInterval     Duration `mapstructure:"ping_interval" json:"ping_interval" yaml:"ping_interval" toml:"ping_interval"`
	Compression      bool     `mapstructure:"compression" json:"compression" yaml:"compression" toml:"compression"`
	// AllowedOrigins is a list of glob patterns matched against Origin header.
	// Empty list means only same host requests are accepted from browsers.
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

// Gateway session options.
type Gateway struct {
	// MaxTrackedServers is a capacity of per-connection cache of servers
	// client recently subscribed to.
	MaxTrackedServers int `mapstructure:"max_tracked_servers" json:"max_tracked_servers" yaml:"max_tracked_servers" toml:"max_tracked_servers"`
	// ReadyFields lists entity categories sent in Ready: users, servers,
	// channels, members, emojis.
	ReadyFields []string `mapstructure:"ready_fields" json:"ready_fields" yaml:"ready_fields" toml:"ready_fields"`
	// ShutdownTimeout bounds time of session teardown after one of its loops stopped.
	ShutdownTimeout Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	// SubscriptionBuffer is a number of bus deliveries buffered per session.
	// Session is closed as slow when buffer overflows.
	SubscriptionBuffer int `mapstructure:"subscription_buffer" json:"subscription_buffer" yaml:"subscription_buffer" toml:"subscription_buffer"`
}

type Client struct {
	// ConnectionLimit limits number of concurrent connections on node. Zero means no limit.
	ConnectionLimit int `mapstructure:"connection_limit" json:"connection_limit" yaml:"connection_limit" toml:"connection_limit"`
	// ConnectionRateLimit limits number of new connections per second. Zero means no limit.
	ConnectionRateLimit int `mapstructure:"connection_rate_limit" json:"connection_rate_limit" yaml:"connection_rate_limit" toml:"connection_rate_limit"`
}

type NatsBus struct {
	URL    string `mapstructure:"url" json:"url" yaml:"url" toml:"url"`
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix" toml:"prefix"`
}

// Bus selects event bus implementation: memory, nats or redis.
type Bus struct {
	Type  string  `mapstructure:"type" json:"type" yaml:"type" toml:"type"`
	Nats  NatsBus `mapstructure:"nats" json:"nats" yaml:"nats" toml:"nats"`
	Redis Redis   `mapstructure:"redis" json:"redis" yaml:"redis" toml:"redis"`
}

// Presence selects presence registry implementation: memory or redis.
type Presence struct {
	Type  string `mapstructure:"type" json:"type" yaml:"type" toml:"type"`
	Redis Redis  `mapstructure:"redis" json:"redis" yaml:"redis" toml:"redis"`
}

type MemoryStore struct {
	// FixtureFile is an optional YAML file with data loaded on start.
	FixtureFile string `mapstructure:"fixture_file" json:"fixture_file" yaml:"fixture_file" toml:"fixture_file"`
}

type PostgresStore struct {
	DSN      string `mapstructure:"dsn" json:"dsn" yaml:"dsn" toml:"dsn"`
	MaxConns int    `mapstructure:"max_conns" json:"max_conns" yaml:"max_conns" toml:"max_conns"`
	// Migrate creates schema on start.
	Migrate bool `mapstructure:"migrate" json:"migrate" yaml:"migrate" toml:"migrate"`
}

// Store selects session and entity store: memory or postgresql.
type Store struct {
	Type       string        `mapstructure:"type" json:"type" yaml:"type" toml:"type"`
	Memory     MemoryStore   `mapstructure:"memory" json:"memory" yaml:"memory" toml:"memory"`
	PostgreSQL PostgresStore `mapstructure:"postgresql" json:"postgresql" yaml:"postgresql" toml:"postgresql"`
}

type Prometheus struct {
	Enabled       bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	HandlerPrefix string `mapstructure:"handler_prefix" json:"handler_prefix" yaml:"handler_prefix" toml:"handler_prefix"`
}

type Health struct {
	Enabled       bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
	HandlerPrefix string `mapstructure:"handler_prefix" json:"handler_prefix" yaml:"handler_prefix" toml:"handler_prefix"`
}

// OpenTelemetry tracing. Exporter is configured over standard OTEL_* environment variables.
type OpenTelemetry struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled" toml:"enabled"`
}

type Shutdown struct {
	// Timeout is a maximum time for graceful shutdown of the process.
	Timeout Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" toml:"timeout"`
}
