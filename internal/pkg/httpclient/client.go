package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/looplj/webproxy/internal/build"
	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/webproxy"
)

// ProxySource hands out the proxy snapshot to use for the next request.
type ProxySource interface {
	Load() *webproxy.Proxy
}

// HttpClient executes requests, asking the proxy source per request whether to go
// through the proxy.
type HttpClient struct {
	client      *http.Client
	proxySource ProxySource
}

// NewHttpClientWithProxy creates a new HTTP client with proxy configuration.
func NewHttpClientWithProxy(proxySource ProxySource) *HttpClient {
	transport := &http.Transport{
		Proxy: getProxyFunc(proxySource),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HttpClient{
		client: &http.Client{
			Transport: transport,
		},
		proxySource: proxySource,
	}
}

// getProxyFunc returns a proxy function based on the proxy configuration.
func getProxyFunc(proxySource ProxySource) func(*http.Request) (*url.URL, error) {
	// Without a proxy source fall back to the environment.
	if proxySource == nil {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		return resolveProxy(req.Context(), proxySource.Load(), req.URL)
	}
}

func resolveProxy(ctx context.Context, p *webproxy.Proxy, destination *url.URL) (*url.URL, error) {
	proxyURL, err := p.GetProxy(destination)
	if err != nil {
		return nil, err
	}

	if proxyURL == nil {
		log.Debug(ctx, "connect directly", log.String("destination", destination.Redacted()))
		return nil, nil
	}

	if proxyURL.User == nil && p.Credentials() != nil {
		proxyURL.User = p.Credentials().Userinfo(proxyURL)
	}

	log.Debug(ctx, "use proxy",
		log.String("destination", destination.Redacted()),
		log.String("proxy_url", proxyURL.Redacted()),
	)

	return proxyURL, nil
}

// Do executes the HTTP request.
func (hc *HttpClient) Do(ctx context.Context, request *Request) (*Response, error) {
	log.Debug(ctx, "execute http request", log.String("method", request.Method), log.String("url", request.URL))

	rawReq, err := hc.buildHttpRequest(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP request: %w", err)
	}

	var proxyURL *url.URL
	if hc.proxySource != nil {
		proxyURL, err = hc.proxySource.Load().GetProxy(rawReq.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve proxy: %w", err)
		}
	}

	rawResp, err := hc.client.Do(rawReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	defer func() {
		err := rawResp.Body.Close()
		if err != nil {
			log.Warn(ctx, "failed to close HTTP response body", log.Cause(err))
		}
	}()

	body, err := io.ReadAll(rawResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if rawResp.StatusCode >= 400 {
		if log.DebugEnabled(ctx) {
			log.Debug(ctx, "HTTP request failed",
				log.String("method", rawReq.Method),
				log.String("url", rawReq.URL.String()),
				log.Int("status_code", rawResp.StatusCode),
				log.String("body", string(body)))
		}

		return nil, &Error{
			Method:     rawReq.Method,
			URL:        rawReq.URL.String(),
			StatusCode: rawResp.StatusCode,
			Status:     rawResp.Status,
			Body:       body,
		}
	}

	return &Response{
		StatusCode:  rawResp.StatusCode,
		Headers:     rawResp.Header,
		Body:        body,
		Proxy:       proxyURL,
		Request:     request,
		RawRequest:  rawReq,
		RawResponse: rawResp,
	}, nil
}

// buildHttpRequest builds an HTTP request from Request.
func (hc *HttpClient) buildHttpRequest(
	ctx context.Context,
	request *Request,
) (*http.Request, error) {
	var body io.Reader
	if len(request.Body) > 0 {
		body = bytes.NewReader(request.Body)
	}

	method := request.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, request.URL, body)
	if err != nil {
		return nil, err
	}

	httpReq.Header = request.Headers.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}

	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", build.UserAgent())
	}

	for k := range blockedHeaders {
		httpReq.Header.Del(k)
	}

	return httpReq, nil
}
