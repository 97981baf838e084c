package objects

import "time"

const (
	RouteDirect = "DIRECT"
	RouteProxy  = "PROXY"
)

// ProxyResolution is the answer for one destination.
type ProxyResolution struct {
	Destination string `json:"destination"`
	Bypassed    bool   `json:"bypassed"`

	// Route is DIRECT or PROXY.
	Route string `json:"route"`

	// Proxy is the redacted proxy address, empty when bypassed.
	Proxy string `json:"proxy,omitempty"`
}

// ProbeResult reports a request sent to a destination along the resolved route.
type ProbeResult struct {
	ProxyResolution

	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

type UpdateBypassListRequest struct {
	// Patterns are regular expressions matched against "scheme://authority".
	Patterns []string `json:"patterns"`

	// Globs are "*" / "?" rules, appended after Patterns.
	Globs []string `json:"globs"`
}
