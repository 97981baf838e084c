package webproxy

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/looplj/webproxy/internal/log"
)

const (
	envLocalToken      = "*.local"
	settingsLocalToken = "<local>"
)

// DiscoverySource produces the default proxy from somewhere outside the process: the
// environment, operating system settings or a configuration file. A source with nothing
// to offer returns (nil, nil).
type DiscoverySource interface {
	Discover(ctx context.Context) (*Proxy, error)
}

type DiscoverySourceFunc func(ctx context.Context) (*Proxy, error)

func (f DiscoverySourceFunc) Discover(ctx context.Context) (*Proxy, error) {
	return f(ctx)
}

// DefaultProxy asks the sources in order and returns the first proxy found. When none
// yields one, an empty proxy is returned, which bypasses every destination. An error is
// returned only when no source produced a proxy and at least one failed.
func DefaultProxy(ctx context.Context, sources ...DiscoverySource) (*Proxy, error) {
	p, err := ChainSource(sources).Discover(ctx)
	if err != nil {
		return nil, err
	}

	if p == nil {
		log.Debug(ctx, "no proxy discovered, connecting directly")
		return &Proxy{}, nil
	}

	return p, nil
}

// ChainSource returns the proxy of the first source that has one.
type ChainSource []DiscoverySource

func (c ChainSource) Discover(ctx context.Context) (*Proxy, error) {
	var errs *multierror.Error

	for _, source := range c {
		p, err := source.Discover(ctx)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}

		if p != nil {
			return p, nil
		}
	}

	return nil, errs.ErrorOrNil()
}

// StaticSource always yields a copy of Proxy.
type StaticSource struct {
	Proxy *Proxy
}

func (s StaticSource) Discover(context.Context) (*Proxy, error) {
	if s.Proxy == nil {
		return nil, nil
	}

	return s.Proxy.Clone(), nil
}

// EnvSource reads http_proxy and no_proxy, falling back to their upper-case spelling.
type EnvSource struct {
	LookupEnv func(key string) (string, bool)
}

func NewEnvSource() *EnvSource {
	return &EnvSource{LookupEnv: os.LookupEnv}
}

func (s *EnvSource) Discover(ctx context.Context) (*Proxy, error) {
	address, ok := s.lookup("http_proxy", "HTTP_PROXY")
	if !ok {
		return nil, nil
	}

	u, err := ParseAddress(address)
	if err != nil {
		log.Warn(ctx, "ignore malformed http_proxy", log.Cause(err))
		return nil, nil
	}

	u = replaceUnspecifiedHost(u)

	noProxy, _ := s.lookup("no_proxy", "NO_PROXY")
	globs, local := splitBypassList(noProxy, ",", envLocalToken)

	p, err := New(u, local, GlobsToPatterns(globs))
	if err != nil {
		return nil, fmt.Errorf("no_proxy: %w", err)
	}

	log.Debug(ctx, "discovered proxy from environment",
		log.String("address", u.Redacted()),
		log.Bool("bypass_on_local", local),
		log.Strings("no_proxy", globs),
	)

	return p, nil
}

func (s *EnvSource) lookup(keys ...string) (string, bool) {
	lookupEnv := s.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	for _, key := range keys {
		if v, ok := lookupEnv(key); ok && v != "" {
			return v, true
		}
	}

	return "", false
}

// replaceUnspecifiedHost points a proxy listening on 0.0.0.0 or :: at the loopback address.
func replaceUnspecifiedHost(u *url.URL) *url.URL {
	addr, err := netip.ParseAddr(u.Hostname())
	if err != nil || !addr.IsUnspecified() {
		return u
	}

	host := "127.0.0.1"
	if addr.Is6() {
		host = "::1"
	}

	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if addr.Is6() {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	return u
}

// InternetSettings mirrors the Windows "Internet Settings" proxy values.
type InternetSettings struct {
	ProxyEnable int `conf:"proxy_enable" yaml:"proxy_enable" json:"proxy_enable"`

	// ProxyServer is either "host:port" or per-protocol "http=host:port;https=host:port".
	ProxyServer string `conf:"proxy_server" yaml:"proxy_server" json:"proxy_server,omitempty"`

	// ProxyOverride is a ";" separated glob list, "<local>" meaning bypass on local.
	ProxyOverride string `conf:"proxy_override" yaml:"proxy_override" json:"proxy_override,omitempty"`
}

// InternetSettingsReader fetches the values, e.g. from the registry.
type InternetSettingsReader interface {
	ReadInternetSettings(ctx context.Context) (InternetSettings, error)
}

type InternetSettingsReaderFunc func(ctx context.Context) (InternetSettings, error)

func (f InternetSettingsReaderFunc) ReadInternetSettings(ctx context.Context) (InternetSettings, error) {
	return f(ctx)
}

type InternetSettingsSource struct {
	Reader InternetSettingsReader
}

func (s InternetSettingsSource) Discover(ctx context.Context) (*Proxy, error) {
	if s.Reader == nil {
		return nil, nil
	}

	settings, err := s.Reader.ReadInternetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read internet settings: %w", err)
	}

	return settings.Proxy()
}

// Proxy converts the settings, returning nil when the proxy is not enabled.
func (s InternetSettings) Proxy() (*Proxy, error) {
	if s.ProxyEnable <= 0 {
		return nil, nil
	}

	server := s.ProxyServer
	if strings.Contains(server, "=") {
		server = ""

		for _, entry := range strings.Split(s.ProxyServer, ";") {
			if strings.HasPrefix(entry, "http=") {
				server = strings.TrimPrefix(entry, "http=")
				break
			}
		}
	}

	u, err := ParseAddress(server)
	if err != nil {
		return nil, fmt.Errorf("internet settings: %w", err)
	}

	globs, local := splitBypassList(s.ProxyOverride, ";", settingsLocalToken)

	return New(u, local, GlobsToPatterns(globs))
}

// ConfigSource builds the proxy described by the configuration file.
type ConfigSource struct {
	Config Config

	// Env serves ProxyTypeEnvironment. Defaults to the process environment.
	Env *EnvSource
}

func (s ConfigSource) Discover(ctx context.Context) (*Proxy, error) {
	switch s.Config.Type {
	case ProxyTypeDisabled:
		return &Proxy{}, nil
	case "", ProxyTypeEnvironment:
		env := s.Env
		if env == nil {
			env = NewEnvSource()
		}

		return env.Discover(ctx)
	case ProxyTypeInternetSettings:
		return s.Config.InternetSettings.Proxy()
	case ProxyTypeURL:
		return s.fromURL(ctx)
	default:
		return nil, fmt.Errorf("unknown proxy type %q", s.Config.Type)
	}
}

func (s ConfigSource) fromURL(ctx context.Context) (*Proxy, error) {
	cfg := s.Config

	if cfg.URL == "" {
		return nil, fmt.Errorf("proxy URL is required when type is '%s'", ProxyTypeURL)
	}

	u, err := ParseAddress(cfg.URL)
	if err != nil {
		return nil, err
	}

	bypassOnLocal := cfg.BypassOnLocal
	patterns := append([]string{}, cfg.BypassList...)

	for _, rule := range cfg.NoProxy {
		rule = strings.TrimSpace(rule)

		switch rule {
		case "":
		case envLocalToken, settingsLocalToken:
			bypassOnLocal = true
		default:
			patterns = append(patterns, GlobToPattern(rule))
		}
	}

	p, err := New(u, bypassOnLocal, patterns,
		WithCredentials(cfg.credentials()),
		WithDefaultCredentials(cfg.UseDefaultCredentials),
	)
	if err != nil {
		return nil, err
	}

	log.Debug(ctx, "use configured proxy",
		log.String("address", u.Redacted()),
		log.Bool("bypass_on_local", bypassOnLocal),
		log.Int("bypass_rules", len(patterns)),
	)

	return p, nil
}
