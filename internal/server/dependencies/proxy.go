package dependencies

import (
	"context"

	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/pkg/httpclient"
	"github.com/looplj/webproxy/internal/webproxy"
)

// NewDiscoverySource resolves the default proxy from the proxy section of the config.
func NewDiscoverySource(cfg webproxy.Config) webproxy.DiscoverySource {
	return webproxy.ConfigSource{
		Config: cfg,
		Env:    webproxy.NewEnvSource(),
	}
}

// NewProxyHolder runs discovery once at startup. Startup fails when discovery does.
func NewProxyHolder(source webproxy.DiscoverySource) (*webproxy.Holder, error) {
	ctx := context.Background()

	p, err := webproxy.DefaultProxy(ctx, source)
	if err != nil {
		return nil, err
	}

	snapshot := p.Snapshot()
	log.Info(ctx, "default proxy discovered",
		log.String("address", snapshot.Address),
		log.Bool("bypass_on_local", snapshot.BypassOnLocal),
		log.Int("rules", len(snapshot.BypassList)),
	)

	return webproxy.NewHolder(p), nil
}

func NewHttpClient(holder *webproxy.Holder) *httpclient.HttpClient {
	return httpclient.NewHttpClientWithProxy(holder)
}
