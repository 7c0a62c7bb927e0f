package configtypes

// Redis is a connection config of Redis used by bus and presence.
type Redis struct {
	Address        []string `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	Prefix         string   `mapstructure:"prefix" json:"prefix" yaml:"prefix" toml:"prefix"`
	ConnectTimeout Duration `mapstructure:"connect_timeout" json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
	IOTimeout      Duration `mapstructure:"io_timeout" json:"io_timeout" yaml:"io_timeout" toml:"io_timeout"`
	DB             int      `mapstructure:"db" json:"db" yaml:"db" toml:"db"`
	User           string   `mapstructure:"user" json:"user" yaml:"user" toml:"user"`
	Password       string   `mapstructure:"password" json:"password" yaml:"password" toml:"password"`
	ClientName     string   `mapstructure:"client_name" json:"client_name" yaml:"client_name" toml:"client_name"`
	ForceResp2     bool     `mapstructure:"force_resp2" json:"force_resp2" yaml:"force_resp2" toml:"force_resp2"`
}
