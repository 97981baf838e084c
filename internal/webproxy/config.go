package webproxy

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type ProxyType string

const (
	ProxyTypeDisabled         ProxyType = "disabled"          // No proxy, every destination is reached directly
	ProxyTypeEnvironment      ProxyType = "environment"       // http_proxy / no_proxy
	ProxyTypeURL              ProxyType = "url"               // Address and rules from this config
	ProxyTypeInternetSettings ProxyType = "internet_settings" // Windows Internet Settings values
)

// Config is the proxy section of the configuration file.
type Config struct {
	Type     ProxyType `conf:"type" yaml:"type" json:"type"`
	URL      string    `conf:"url" yaml:"url" json:"url,omitempty"` // e.g., "http://proxy.example.com:8080"
	Username string    `conf:"username" yaml:"username" json:"username,omitempty"`
	Password string    `conf:"password" yaml:"password" json:"password,omitempty"`

	BypassOnLocal bool `conf:"bypass_on_local" yaml:"bypass_on_local" json:"bypass_on_local"`

	// BypassList holds regular expressions matched against "scheme://authority".
	BypassList []string `conf:"bypass_list" yaml:"bypass_list" json:"bypass_list,omitempty"`

	// NoProxy holds glob rules. "*.local" and "<local>" turn on BypassOnLocal.
	NoProxy []string `conf:"no_proxy" yaml:"no_proxy" json:"no_proxy,omitempty"`

	UseDefaultCredentials bool `conf:"use_default_credentials" yaml:"use_default_credentials" json:"use_default_credentials"`

	InternetSettings InternetSettings `conf:"internet_settings" yaml:"internet_settings" json:"internet_settings"`

	// RefreshCron re-runs discovery on a cron schedule, e.g. "*/5 * * * *". Empty disables it.
	RefreshCron string `conf:"refresh_cron" yaml:"refresh_cron" json:"refresh_cron,omitempty"`
}

// Validate reports every problem of the config at once.
func (c Config) Validate() error {
	var errs *multierror.Error

	switch c.Type {
	case "", ProxyTypeDisabled, ProxyTypeEnvironment, ProxyTypeInternetSettings:
	case ProxyTypeURL:
		if c.URL == "" {
			errs = multierror.Append(errs, errors.New("proxy.url is required when proxy.type is 'url'"))
		} else if _, err := ParseAddress(c.URL); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("proxy.url: %w", err))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("proxy.type %q is not one of disabled, environment, url, internet_settings", c.Type))
	}

	if err := (&Proxy{}).SetBypassList(c.BypassList); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("proxy.bypass_list: %w", err))
	}

	return errs.ErrorOrNil()
}

func (c Config) credentials() Credentials {
	if c.Username == "" {
		return nil
	}

	return &BasicCredentials{
		Username: c.Username,
		Password: c.Password,
	}
}
