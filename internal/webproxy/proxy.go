package webproxy

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/looplj/webproxy/internal/pkg/xregexp"
)

// Credentials is carried along with the proxy for the transport to present. The bypass
// logic never looks at it.
type Credentials interface {
	// Userinfo returns the credential for the proxy at proxyURL, or nil for none.
	Userinfo(proxyURL *url.URL) *url.Userinfo
}

// BasicCredentials presents a username and password to the proxy.
type BasicCredentials struct {
	Username string
	Password string
}

func (c *BasicCredentials) Userinfo(*url.URL) *url.Userinfo {
	if c == nil || c.Username == "" {
		return nil
	}

	return url.UserPassword(c.Username, c.Password)
}

// Proxy holds the proxy endpoint together with the rules deciding which destinations skip it.
//
// Evaluation never mutates a Proxy, so any number of goroutines may call IsBypassed and
// GetProxy on it. The setters must not run while such calls may be in flight; share a
// Proxy that changes at runtime through a Holder, which swaps whole snapshots.
type Proxy struct {
	address               *url.URL
	bypassOnLocal         bool
	bypassList            []string
	credentials           Credentials
	useDefaultCredentials bool
}

type Option func(p *Proxy)

func WithCredentials(credentials Credentials) Option {
	return func(p *Proxy) {
		p.credentials = credentials
	}
}

func WithDefaultCredentials(use bool) Option {
	return func(p *Proxy) {
		p.useDefaultCredentials = use
	}
}

// New creates a proxy. A nil address means no proxy is configured and every destination
// is bypassed. bypassList holds regular expressions; use GlobsToPatterns for glob rules.
func New(address *url.URL, bypassOnLocal bool, bypassList []string, opts ...Option) (*Proxy, error) {
	p := &Proxy{
		address:       cloneURL(address),
		bypassOnLocal: bypassOnLocal,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.SetBypassList(bypassList); err != nil {
		return nil, err
	}

	return p, nil
}

// Parse is New with a textual address. An address without a scheme is taken as http.
func Parse(address string, bypassOnLocal bool, bypassList []string, opts ...Option) (*Proxy, error) {
	u, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	return New(u, bypassOnLocal, bypassList, opts...)
}

// NewHostPort creates a proxy at http://host:port.
func NewHostPort(host string, port int) (*Proxy, error) {
	return Parse("http://"+net.JoinHostPort(host, strconv.Itoa(port)), false, nil)
}

// ParseAddress parses a proxy endpoint. The empty string yields nil.
func ParseAddress(address string) (*url.URL, error) {
	if address == "" {
		return nil, nil
	}

	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy address: %w", err)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy address %q: missing host", address)
	}

	return u, nil
}

func (p *Proxy) Address() *url.URL {
	return cloneURL(p.address)
}

func (p *Proxy) SetAddress(address *url.URL) {
	p.address = cloneURL(address)
}

func (p *Proxy) BypassOnLocal() bool {
	return p.bypassOnLocal
}

func (p *Proxy) SetBypassOnLocal(bypassOnLocal bool) {
	p.bypassOnLocal = bypassOnLocal
}

// BypassList returns a copy of the bypass patterns in evaluation order.
func (p *Proxy) BypassList() []string {
	list := make([]string, len(p.bypassList))
	copy(list, p.bypassList)

	return list
}

// SetBypassList replaces the bypass patterns. Every pattern is compiled first; when one
// fails an *InvalidPatternError is returned and the current list is kept.
func (p *Proxy) SetBypassList(patterns []string) error {
	for i, pattern := range patterns {
		if err := xregexp.Validate(pattern); err != nil {
			return &InvalidPatternError{
				Index:   i,
				Pattern: pattern,
				Err:     err,
			}
		}
	}

	list := make([]string, len(patterns))
	copy(list, patterns)
	p.bypassList = list

	return nil
}

func (p *Proxy) Credentials() Credentials {
	return p.credentials
}

func (p *Proxy) SetCredentials(credentials Credentials) {
	p.credentials = credentials
}

func (p *Proxy) UseDefaultCredentials() bool {
	return p.useDefaultCredentials
}

func (p *Proxy) SetUseDefaultCredentials(use bool) {
	p.useDefaultCredentials = use
}

// IsBypassed reports whether host should be reached directly.
func (p *Proxy) IsBypassed(host *url.URL) (bool, error) {
	return IsBypassed(p, host)
}

// GetProxy returns the proxy to route destination through, or nil to connect directly.
func (p *Proxy) GetProxy(destination *url.URL) (*url.URL, error) {
	bypassed, err := p.IsBypassed(destination)
	if err != nil {
		return nil, err
	}

	if bypassed {
		return nil, nil
	}

	return cloneURL(p.address), nil
}

// ProxyFunc adapts the proxy to http.Transport.Proxy.
func (p *Proxy) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if req == nil {
			return nil, ErrInvalidArgument
		}

		return p.GetProxy(req.URL)
	}
}

// Clone returns a deep copy sharing only the credentials value.
func (p *Proxy) Clone() *Proxy {
	return &Proxy{
		address:               cloneURL(p.address),
		bypassOnLocal:         p.bypassOnLocal,
		bypassList:            slices.Clone(p.bypassList),
		credentials:           p.credentials,
		useDefaultCredentials: p.useDefaultCredentials,
	}
}

// Snapshot is the serializable view of a Proxy. Credentials are never included.
type Snapshot struct {
	Address               string   `json:"address,omitempty" yaml:"address,omitempty"`
	BypassOnLocal         bool     `json:"bypass_on_local" yaml:"bypass_on_local"`
	BypassList            []string `json:"bypass_list" yaml:"bypass_list"`
	HasCredentials        bool     `json:"has_credentials" yaml:"has_credentials"`
	UseDefaultCredentials bool     `json:"use_default_credentials" yaml:"use_default_credentials"`
}

func (p *Proxy) Snapshot() Snapshot {
	s := Snapshot{
		BypassOnLocal:         p.bypassOnLocal,
		BypassList:            p.BypassList(),
		HasCredentials:        p.credentials != nil,
		UseDefaultCredentials: p.useDefaultCredentials,
	}

	if p.address != nil {
		s.Address = p.address.Redacted()
	}

	return s
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}

	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}

	return &c
}
