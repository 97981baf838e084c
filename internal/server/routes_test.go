package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/pkg/httpclient"
	"github.com/looplj/webproxy/internal/server/api"
	"github.com/looplj/webproxy/internal/server/biz"
	"github.com/looplj/webproxy/internal/webproxy"
)

func newTestServer(t *testing.T, config Config) *Server {
	t.Helper()

	p, err := webproxy.Parse("http://proxy.invalid:1", false, nil)
	require.NoError(t, err)

	holder := webproxy.NewHolder(p)
	svc := biz.NewProxyService(biz.ProxyServiceParams{
		Holder:     holder,
		HttpClient: httpclient.NewHttpClientWithProxy(holder),
	})

	srv := New(config)
	SetupRoutes(srv, Handlers{
		Proxy:  api.NewProxyHandlers(api.ProxyHandlersParams{ProxyService: svc}),
		System: api.NewSystemHandlers(),
	})

	return srv
}

func serve(srv *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(method, target, nil))

	return w
}

func TestSetupRoutes(t *testing.T) {
	srv := newTestServer(t, Config{BasePath: "/api", RequestIDHeader: "X-Request-Id"})

	w := serve(srv, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = serve(srv, http.MethodGet, "/api/v1/proxy?url="+url.QueryEscape("http://example.com"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "proxy.invalid:1")

	w = serve(srv, http.MethodGet, "/api/v1/proxy/config")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRoutes_Probe(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer backend.Close()

	target := "/v1/proxy/probe?url=" + url.QueryEscape(backend.URL)

	tests := []struct {
		name           string
		enableProbe    bool
		expectedStatus int
	}{
		{name: "disabled by default", expectedStatus: http.StatusNotFound},
		{name: "enabled", enableProbe: true, expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, Config{EnableProbe: tt.enableProbe})

			w := serve(srv, http.MethodGet, target)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestInstallLogger(t *testing.T) {
	previous := log.GetGlobalLogger()
	previousSlog := slog.Default()

	t.Cleanup(func() {
		log.SetGlobalLogger(previous)
		slog.SetDefault(previousSlog)
	})

	logger := log.New(log.DefaultConfig())
	installLogger(logger)

	assert.Same(t, logger, log.GetGlobalLogger())
}
