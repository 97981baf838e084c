package webproxy

import (
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
)

// Holder publishes a Proxy to concurrent readers. Readers always see a complete snapshot;
// writers replace the whole Proxy instead of mutating the one readers hold.
type Holder struct {
	current atomic.Pointer[Proxy]
	mu      sync.Mutex
}

func NewHolder(p *Proxy) *Holder {
	h := &Holder{}
	h.Store(p)

	return h
}

// Load returns the current snapshot. Callers must treat it as read-only.
func (h *Holder) Load() *Proxy {
	return h.current.Load()
}

func (h *Holder) Store(p *Proxy) {
	if p == nil {
		p = &Proxy{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.current.Store(p)
}

// Update applies fn to a copy of the current proxy and publishes the copy if fn succeeds.
func (h *Holder) Update(fn func(p *Proxy) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.current.Load().Clone()
	if err := fn(next); err != nil {
		return err
	}

	h.current.Store(next)

	return nil
}

func (h *Holder) IsBypassed(host *url.URL) (bool, error) {
	return h.Load().IsBypassed(host)
}

func (h *Holder) GetProxy(destination *url.URL) (*url.URL, error) {
	return h.Load().GetProxy(destination)
}

// ProxyFunc adapts the holder to http.Transport.Proxy, picking up later updates.
func (h *Holder) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if req == nil {
			return nil, ErrInvalidArgument
		}

		return h.GetProxy(req.URL)
	}
}
