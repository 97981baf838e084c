package rulesync

const (
	ModeMemory = "memory"
	ModeRedis  = "redis"

	DefaultChannel = "webproxy:rules"
)

// Config controls how runtime bypass rule changes reach the other instances.
type Config struct {
	// Mode is memory (single instance) or redis.
	Mode    string      `conf:"mode" yaml:"mode" json:"mode"`
	Channel string      `conf:"channel" yaml:"channel" json:"channel"`
	Redis   RedisConfig `conf:"redis" yaml:"redis" json:"redis"`
}

type RedisConfig struct {
	Addr                  string `conf:"addr" yaml:"addr" json:"addr"`
	URL                   string `conf:"url" yaml:"url" json:"url"`
	Username              string `conf:"username" yaml:"username" json:"username"`
	Password              string `conf:"password" yaml:"password" json:"-"`
	DB                    *int   `conf:"db" yaml:"db" json:"db"`
	TLS                   bool   `conf:"tls" yaml:"tls" json:"tls"`
	TLSInsecureSkipVerify bool   `conf:"tls_insecure_skip_verify" yaml:"tls_insecure_skip_verify" json:"tls_insecure_skip_verify"`
}
