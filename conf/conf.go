package conf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/metrics"
	"github.com/looplj/webproxy/internal/server"
	"github.com/looplj/webproxy/internal/server/rulesync"
	"github.com/looplj/webproxy/internal/webproxy"
)

const EnvPrefix = "WEBPROXY"

// Config is the whole configuration file. Each section is provided to fx on its own.
type Config struct {
	fx.Out `conf:"-" yaml:"-" json:"-"`

	APIServer server.Config   `conf:"server" yaml:"server" json:"server"`
	Log       log.Config      `conf:"log" yaml:"log" json:"log"`
	Proxy     webproxy.Config `conf:"proxy" yaml:"proxy" json:"proxy"`
	Sync      rulesync.Config `conf:"sync" yaml:"sync" json:"sync"`
	Metrics   metrics.Config  `conf:"metrics" yaml:"metrics" json:"metrics"`
}

// Load reads config.yml from the working directory, ./conf, $HOME/.webproxy or /etc/webproxy.
// A missing file is not an error. Environment variables such as WEBPROXY_SERVER_PORT
// override the file.
func Load() (Config, error) {
	return load("")
}

// LoadFile reads the given file instead of searching for one.
func LoadFile(path string) (Config, error) {
	return load(path)
}

func load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./conf")
		v.AddConfigPath("$HOME/.webproxy")
		v.AddConfigPath("/etc/webproxy")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "conf"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.name", "webproxy")
	v.SetDefault("server.base_path", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.request_id_header", "X-Request-Id")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.enable_probe", false)
	v.SetDefault("server.cors.enabled", false)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("server.cors.allowed_methods", []string{"GET", "PUT", "POST", "OPTIONS"})
	v.SetDefault("server.cors.allowed_headers", []string{"Content-Type", "X-Request-Id"})
	v.SetDefault("server.cors.exposed_headers", []string{"X-Request-Id"})
	v.SetDefault("server.cors.allow_credentials", false)
	v.SetDefault("server.cors.max_age", "12h")

	logCfg := log.DefaultConfig()
	v.SetDefault("log.name", logCfg.Name)
	v.SetDefault("log.level", logCfg.Level)
	v.SetDefault("log.encoding", logCfg.Encoding)
	v.SetDefault("log.output", logCfg.Output)
	v.SetDefault("log.debug", logCfg.Debug)
	v.SetDefault("log.file.path", logCfg.File.Path)
	v.SetDefault("log.file.max_size", logCfg.File.MaxSize)
	v.SetDefault("log.file.max_age", logCfg.File.MaxAge)
	v.SetDefault("log.file.max_backups", logCfg.File.MaxBackups)
	v.SetDefault("log.file.local_time", logCfg.File.LocalTime)
	v.SetDefault("log.file.compress", logCfg.File.Compress)

	v.SetDefault("proxy.type", string(webproxy.ProxyTypeEnvironment))
	v.SetDefault("proxy.url", "")
	v.SetDefault("proxy.username", "")
	v.SetDefault("proxy.password", "")
	v.SetDefault("proxy.bypass_on_local", false)
	v.SetDefault("proxy.bypass_list", []string{})
	v.SetDefault("proxy.no_proxy", []string{})
	v.SetDefault("proxy.use_default_credentials", false)
	v.SetDefault("proxy.refresh_cron", "")
	v.SetDefault("proxy.internet_settings.proxy_enable", 0)
	v.SetDefault("proxy.internet_settings.proxy_server", "")
	v.SetDefault("proxy.internet_settings.proxy_override", "")

	v.SetDefault("sync.mode", rulesync.ModeMemory)
	v.SetDefault("sync.channel", rulesync.DefaultChannel)
	v.SetDefault("sync.redis.addr", "")
	v.SetDefault("sync.redis.url", "")
	v.SetDefault("sync.redis.username", "")
	v.SetDefault("sync.redis.password", "")
	v.SetDefault("sync.redis.tls", false)
	v.SetDefault("sync.redis.tls_insecure_skip_verify", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.exporter", metrics.ExporterStdout)
	v.SetDefault("metrics.interval", metrics.DefaultInterval.String())
}

// Validate reports every problem of the config at once.
func (c Config) Validate() error {
	var errs *multierror.Error

	if c.APIServer.Port <= 0 || c.APIServer.Port > 65535 {
		errs = multierror.Append(errs, errors.New("server.port must be between 1 and 65535"))
	}

	if c.Log.Name == "" {
		errs = multierror.Append(errs, errors.New("log.name cannot be empty"))
	}

	if c.Log.Output == log.OutputFile && c.Log.File.Path == "" {
		errs = multierror.Append(errs, errors.New("log.file.path cannot be empty when log.output is file"))
	}

	if c.APIServer.CORS.Enabled && len(c.APIServer.CORS.AllowedOrigins) == 0 {
		errs = multierror.Append(errs, errors.New("server.cors.allowed_origins cannot be empty when CORS is enabled"))
	}

	switch c.Sync.Mode {
	case "", rulesync.ModeMemory:
	case rulesync.ModeRedis:
		if c.Sync.Redis.Addr == "" && c.Sync.Redis.URL == "" {
			errs = multierror.Append(errs, errors.New("sync.redis.addr or sync.redis.url is required when sync.mode is redis"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("sync.mode %q is not one of memory, redis", c.Sync.Mode))
	}

	if err := c.Metrics.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := c.Proxy.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}

	return errs.ErrorOrNil()
}
