package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/bonfire-gw/bonfire/internal/configtypes"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-envparse"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is a prefix of environment variables overriding config keys,
// ex. BONFIRE_BUS_TYPE overrides bus.type.
const EnvPrefix = "BONFIRE"

// Config is a configuration of gateway process.
type Config struct {
	// HTTP is a configuration for HTTP server.
	HTTP configtypes.HTTPServer `mapstructure:"http_server" json:"http_server" toml:"http_server" yaml:"http_server"`
	// Log is a configuration for logging.
	Log configtypes.Log `mapstructure:"log" json:"log" toml:"log" yaml:"log"`
	// WebSocket configures client WebSocket endpoint.
	WebSocket configtypes.WebSocket `mapstructure:"websocket" json:"websocket" toml:"websocket" yaml:"websocket"`
	// Gateway configures per-connection sessions.
	Gateway configtypes.Gateway `mapstructure:"gateway" json:"gateway" toml:"gateway" yaml:"gateway"`
	// Client contains connection limits applied before upgrade.
	Client configtypes.Client `mapstructure:"client" json:"client" toml:"client" yaml:"client"`
	// Bus selects event bus used to deliver events between sessions and nodes.
	Bus configtypes.Bus `mapstructure:"bus" json:"bus" toml:"bus" yaml:"bus"`
	// Presence selects registry of connected user sessions.
	Presence configtypes.Presence `mapstructure:"presence" json:"presence" toml:"presence" yaml:"presence"`
	// Store selects storage of sessions and entities.
	Store configtypes.Store `mapstructure:"store" json:"store" toml:"store" yaml:"store"`
	// Prometheus configures metrics endpoint.
	Prometheus configtypes.Prometheus `mapstructure:"prometheus" json:"prometheus" toml:"prometheus" yaml:"prometheus"`
	// Health configures health check endpoint.
	Health configtypes.Health `mapstructure:"health" json:"health" toml:"health" yaml:"health"`
	// OpenTelemetry enables tracing of handshakes.
	OpenTelemetry configtypes.OpenTelemetry `mapstructure:"opentelemetry" json:"opentelemetry" toml:"opentelemetry" yaml:"opentelemetry"`
	// Shutdown is a configuration for graceful shutdown.
	Shutdown configtypes.Shutdown `mapstructure:"shutdown" json:"shutdown" toml:"shutdown" yaml:"shutdown"`

	// PidFile is a path to write a file with process PID.
	PidFile string `mapstructure:"pid_file" json:"pid_file" toml:"pid_file" yaml:"pid_file"`
}

type Meta struct {
	FileNotFound bool
	UnknownKeys  []string
	UnknownEnvs  []string
}

var defaults = map[string]any{
	"http_server.address": "",
	"http_server.port":    8000,

	"log.level": "info",
	"log.file":  "",

	"websocket.handler_prefix":     "/connection/websocket",
	"websocket.read_buffer_size":   0,
	"websocket.write_buffer_size":  0,
	"websocket.message_size_limit": 65536,
	"websocket.write_timeout":      "1s",
	"websocket.ping_interval":      "25s",
	"websocket.compression":        false,
	"websocket.allowed_origins":    []string{},

	"gateway.max_tracked_servers": 5,
	"gateway.ready_fields":        []string{"users", "servers", "channels", "members", "emojis"},
	"gateway.shutdown_timeout":    "10s",
	"gateway.subscription_buffer": 256,

	"client.connection_limit":      0,
	"client.connection_rate_limit": 0,

	"bus.type":                  "memory",
	"bus.nats.url":              "nats://127.0.0.1:4222",
	"bus.nats.prefix":           "bonfire",
	"bus.redis.address":         []string{"127.0.0.1:6379"},
	"bus.redis.prefix":          "bonfire",
	"bus.redis.connect_timeout": "1s",
	"bus.redis.io_timeout":      "4s",
	"bus.redis.db":              0,
	"bus.redis.user":            "",
	"bus.redis.password":        "",
	"bus.redis.client_name":     "",
	"bus.redis.force_resp2":     false,

	"presence.type":                  "memory",
	"presence.redis.address":         []string{"127.0.0.1:6379"},
	"presence.redis.prefix":          "bonfire",
	"presence.redis.connect_timeout": "1s",
	"presence.redis.io_timeout":      "4s",
	"presence.redis.db":              0,
	"presence.redis.user":            "",
	"presence.redis.password":        "",
	"presence.redis.client_name":     "",
	"presence.redis.force_resp2":     false,

	"store.type":                 "memory",
	"store.memory.fixture_file":  "",
	"store.postgresql.dsn":       "",
	"store.postgresql.max_conns": 0,
	"store.postgresql.migrate":   false,

	"prometheus.enabled":        false,
	"prometheus.handler_prefix": "/metrics",
	"health.enabled":            false,
	"health.handler_prefix":     "/health",
	"opentelemetry.enabled":     false,

	"shutdown.timeout": "30s",
	"pid_file":         "",
}

var bindPFlags = []string{
	"pid_file", "http_server.port", "http_server.address", "log.level", "log.file",
	"bus.type", "presence.type", "store.type", "store.memory.fixture_file", "store.postgresql.dsn",
	"prometheus.enabled", "health.enabled", "opentelemetry.enabled",
}

func DefineFlags(rootCmd *cobra.Command) {
	rootCmd.Flags().StringP("pid_file", "", "", "optional path to create PID file")
	rootCmd.Flags().StringP("http_server.address", "a", "", "interface address to listen on")
	rootCmd.Flags().StringP("http_server.port", "p", "8000", "port to bind HTTP server to")
	rootCmd.Flags().StringP("log.level", "", "info", "set the log level: trace, debug, info, error, fatal or none")
	rootCmd.Flags().StringP("log.file", "", "", "optional log file - if not specified logs go to STDOUT")
	rootCmd.Flags().StringP("bus.type", "", "memory", "event bus to use: memory, nats or redis")
	rootCmd.Flags().StringP("presence.type", "", "memory", "presence registry to use: memory or redis")
	rootCmd.Flags().StringP("store.type", "", "memory", "store to use: memory or postgresql")
	rootCmd.Flags().StringP("store.memory.fixture_file", "", "", "YAML file with data for memory store")
	rootCmd.Flags().StringP("store.postgresql.dsn", "", "", "PostgreSQL connection string")
	rootCmd.Flags().BoolP("prometheus.enabled", "", false, "enable Prometheus metrics endpoint")
	rootCmd.Flags().BoolP("health.enabled", "", false, "enable health check endpoint")
	rootCmd.Flags().BoolP("opentelemetry.enabled", "", false, "enable OpenTelemetry tracing")
}

func GetConfig(cmd *cobra.Command, configFile string) (Config, Meta, error) {
	v := viper.NewWithOptions(viper.WithDecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		configtypes.StringToDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(" "),
	)))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for _, flag := range bindPFlags {
			if f := cmd.Flags().Lookup(flag); f != nil {
				_ = v.BindPFlag(flag, f)
			}
		}
	}

	meta := Meta{}

	if configFile != "" {
		v.SetConfigFile(configFile)
		err := v.ReadInConfig()
		if err != nil {
			var configFileNotFoundError *os.PathError
			if errors.As(err, &configFileNotFoundError) {
				meta.FileNotFound = true
			} else {
				return Config{}, Meta{}, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	conf := &Config{}
	err := v.Unmarshal(conf)
	if err != nil {
		return Config{}, Meta{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	keys := knownKeys()
	meta.UnknownKeys = findUnknownKeys(v.AllSettings(), keys, "")
	meta.UnknownEnvs = checkEnvironmentVars(keys)
	return *conf, meta, nil
}

// knownKeys returns every dotted key path of Config.
func knownKeys() map[string]struct{} {
	keys := map[string]struct{}{}
	collectKeys(reflect.TypeOf(Config{}), "", keys)
	return keys
}

func collectKeys(typ reflect.Type, parent string, keys map[string]struct{}) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := appendKeyPath(parent, tag)
		keys[key] = struct{}{}
		if field.Type.Kind() == reflect.Struct {
			collectKeys(field.Type, key, keys)
		}
	}
}

func findUnknownKeys(data map[string]any, keys map[string]struct{}, parent string) []string {
	var unknownKeys []string
	for key, value := range data {
		path := appendKeyPath(parent, key)
		if _, ok := keys[path]; !ok {
			unknownKeys = append(unknownKeys, path)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			unknownKeys = append(unknownKeys, findUnknownKeys(nested, keys, path)...)
		}
	}
	sort.Strings(unknownKeys)
	return unknownKeys
}

func appendKeyPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// EnvName returns environment variable name for config key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func checkEnvironmentVars(keys map[string]struct{}) []string {
	known := make(map[string]struct{}, len(keys))
	for key := range keys {
		known[EnvName(key)] = struct{}{}
	}
	var unknownEnvs []string
	envPrefix := EnvPrefix + "_"
	for _, envVar := range os.Environ() {
		kv, err := envparse.Parse(strings.NewReader(envVar))
		if err != nil {
			continue
		}
		for envKey := range kv {
			if !strings.HasPrefix(envKey, envPrefix) {
				continue
			}
			// Kubernetes adds service discovery variables.
			if isKubernetesEnvVar(envKey) {
				continue
			}
			if _, ok := known[envKey]; !ok {
				unknownEnvs = append(unknownEnvs, envKey)
			}
		}
	}
	sort.Strings(unknownEnvs)
	return unknownEnvs
}

var k8sEnvRegex = regexp.MustCompile(`^BONFIRE(?:_[A-Z]+)?_(PORT|SERVICE_)`)

func isKubernetesEnvVar(envKey string) bool {
	return k8sEnvRegex.MatchString(envKey)
}

// DefaultConfig is a helper to be used in tests.
func DefaultConfig() Config {
	conf, _, err := GetConfig(nil, "")
	if err != nil {
		panic("error during getting default config: " + err.Error())
	}
	return conf
}
