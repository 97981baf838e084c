package httpclient

import (
	"net/http"
	"net/url"
)

// Request represents a generic HTTP request.
type Request struct {
	Method  string      `json:"method"`
	URL     string      `json:"url"`
	Headers http.Header `json:"headers"`
	Body    []byte      `json:"body,omitempty"`
}

// Response represents a generic HTTP response.
type Response struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body,omitempty"`

	// Proxy is the proxy the request went through, nil for a direct connection.
	Proxy *url.URL `json:"-"`

	Request     *Request       `json:"-"`
	RawRequest  *http.Request  `json:"-"`
	RawResponse *http.Response `json:"-"`
}

var blockedHeaders = map[string]bool{
	"Content-Length":    true,
	"Transfer-Encoding": true,
	// The client will handle it automatically.
	"Accept-Encoding": true,
	// Proxy credentials are only taken from the proxy config.
	"Proxy-Authorization": true,
}
