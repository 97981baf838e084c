package biz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zhenzou/executors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"

	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/objects"
	"github.com/looplj/webproxy/internal/pkg/httpclient"
	"github.com/looplj/webproxy/internal/server/rulesync"
	"github.com/looplj/webproxy/internal/webproxy"
)

var ErrInvalidDestination = errors.New("destination must be an absolute URL with a host")

const publishTimeout = 5 * time.Second

type ProxyServiceParams struct {
	fx.In

	Config     webproxy.Config
	Source     webproxy.DiscoverySource
	Holder     *webproxy.Holder
	HttpClient *httpclient.HttpClient
	Executor   executors.ScheduledExecutor
	Bus        rulesync.Bus         `optional:"true"`
	Meter      metric.MeterProvider `optional:"true"`
}

type ProxyService struct {
	config     webproxy.Config
	source     webproxy.DiscoverySource
	holder     *webproxy.Holder
	httpClient *httpclient.HttpClient
	executor   executors.ScheduledExecutor
	metrics    *proxyMetrics

	bus      rulesync.Bus
	instance string
	stopSync func()
	syncDone chan struct{}
	syncOnce sync.Once

	// Set once the bypass rules were changed at runtime, refresh keeps them afterwards.
	bypassListOverridden    atomic.Bool
	bypassOnLocalOverridden atomic.Bool
}

func NewProxyService(params ProxyServiceParams) *ProxyService {
	return &ProxyService{
		config:     params.Config,
		source:     params.Source,
		holder:     params.Holder,
		httpClient: params.HttpClient,
		executor:   params.Executor,
		metrics:    newProxyMetrics(params.Meter),
		bus:        params.Bus,
		instance:   uuid.NewString(),
	}
}

// Start follows rule changes made on other instances and schedules the periodic discovery
// refresh when proxy.refresh_cron is set.
func (svc *ProxyService) Start(ctx context.Context) error {
	if svc.bus != nil {
		changes, stop := svc.bus.Subscribe()
		svc.stopSync = stop
		svc.syncDone = make(chan struct{})

		go svc.followChanges(changes)
	}

	if svc.config.RefreshCron == "" || svc.executor == nil {
		return nil
	}

	_, err := svc.executor.ScheduleFuncAtCronRate(
		svc.refreshPeriodic,
		executors.CRONRule{Expr: svc.config.RefreshCron},
	)
	if err != nil {
		return fmt.Errorf("schedule proxy refresh: %w", err)
	}

	log.Info(ctx, "proxy refresh scheduled", log.String("cron", svc.config.RefreshCron))

	return nil
}

// Stop stops following remote rule changes.
func (svc *ProxyService) Stop(ctx context.Context) error {
	if svc.stopSync == nil {
		return nil
	}

	svc.syncOnce.Do(svc.stopSync)

	select {
	case <-svc.syncDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (svc *ProxyService) followChanges(changes <-chan rulesync.Change) {
	defer close(svc.syncDone)

	ctx := log.WithFields(context.Background(), log.String("instance", svc.instance))

	for change := range changes {
		if change.Origin == svc.instance {
			continue
		}

		if err := svc.applyChange(ctx, change); err != nil {
			log.Warn(ctx, "ignore remote rule change",
				log.String("origin", change.Origin),
				log.String("kind", string(change.Kind)),
				log.Cause(err))
		}
	}
}

func (svc *ProxyService) applyChange(ctx context.Context, change rulesync.Change) error {
	switch change.Kind {
	case rulesync.ChangeBypassList:
		if err := svc.setBypassList(change.BypassList); err != nil {
			return err
		}
	case rulesync.ChangeBypassOnLocal:
		svc.setBypassOnLocal(change.BypassOnLocal)
	default:
		return fmt.Errorf("unknown change kind %q", change.Kind)
	}

	svc.metrics.recordRuleChange(ctx, string(change.Kind), true)

	log.Info(ctx, "applied remote rule change",
		log.String("origin", change.Origin),
		log.String("kind", string(change.Kind)),
	)

	return nil
}

// publish shares a local rule change. A failure leaves the local change in place.
func (svc *ProxyService) publish(ctx context.Context, change rulesync.Change) {
	if svc.bus == nil {
		return
	}

	change.Origin = svc.instance
	change.At = time.Now()

	// The change is already applied locally, so a cancelled request must not drop it.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := svc.bus.Publish(pubCtx, change); err != nil {
		log.Error(ctx, "failed to publish rule change", log.String("kind", string(change.Kind)), log.Cause(err))
	}
}

func (svc *ProxyService) refreshPeriodic(ctx context.Context) {
	if _, err := svc.Refresh(ctx); err != nil {
		log.Error(ctx, "failed to refresh proxy", log.Cause(err))
	}
}

// Refresh runs discovery again and installs the result. Bypass rules changed at runtime
// survive the refresh. The running proxy is kept when discovery fails.
func (svc *ProxyService) Refresh(ctx context.Context) (webproxy.Snapshot, error) {
	if svc.source == nil {
		return svc.Snapshot(), nil
	}

	discovered, err := webproxy.DefaultProxy(ctx, svc.source)
	if err != nil {
		svc.metrics.recordRefresh(ctx, err)
		return webproxy.Snapshot{}, err
	}

	err = svc.holder.Update(func(p *webproxy.Proxy) error {
		if !svc.bypassListOverridden.Load() {
			if err := p.SetBypassList(discovered.BypassList()); err != nil {
				return err
			}
		}

		if !svc.bypassOnLocalOverridden.Load() {
			p.SetBypassOnLocal(discovered.BypassOnLocal())
		}

		p.SetAddress(discovered.Address())
		p.SetCredentials(discovered.Credentials())
		p.SetUseDefaultCredentials(discovered.UseDefaultCredentials())

		return nil
	})
	svc.metrics.recordRefresh(ctx, err)

	if err != nil {
		return webproxy.Snapshot{}, err
	}

	snapshot := svc.Snapshot()

	log.Debug(ctx, "proxy refreshed",
		log.String("address", snapshot.Address),
		log.Int("rules", len(snapshot.BypassList)),
	)

	return snapshot, nil
}

// ParseDestination parses an absolute destination URL.
func ParseDestination(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDestination, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidDestination
	}

	return u, nil
}

// Resolve decides how a request to destination is routed.
func (svc *ProxyService) Resolve(ctx context.Context, destination string) (*objects.ProxyResolution, error) {
	u, err := ParseDestination(destination)
	if err != nil {
		return nil, err
	}

	resolution, err := resolve(ctx, svc.holder.Load(), u)
	if err != nil {
		return nil, err
	}

	svc.metrics.recordResolution(ctx, resolution.Route)

	return resolution, nil
}

// ResolveWith decides how destination is routed by p. Used where no service is running.
func ResolveWith(ctx context.Context, p *webproxy.Proxy, destination string) (*objects.ProxyResolution, error) {
	u, err := ParseDestination(destination)
	if err != nil {
		return nil, err
	}

	return resolve(ctx, p, u)
}

func resolve(ctx context.Context, p *webproxy.Proxy, u *url.URL) (*objects.ProxyResolution, error) {
	proxyURL, err := p.GetProxy(u)
	if err != nil {
		return nil, err
	}

	resolution := &objects.ProxyResolution{
		Destination: u.Redacted(),
		Bypassed:    proxyURL == nil,
		Route:       objects.RouteDirect,
	}

	if proxyURL != nil {
		resolution.Route = objects.RouteProxy
		resolution.Proxy = proxyURL.Redacted()
	}

	log.Debug(ctx, "resolved proxy",
		log.String("destination", resolution.Destination),
		log.String("route", resolution.Route),
		log.String("proxy", resolution.Proxy),
	)

	return resolution, nil
}

// Probe sends a GET to destination along the resolved route. Transport failures and HTTP
// errors are reported in the result rather than returned.
func (svc *ProxyService) Probe(ctx context.Context, destination string) (*objects.ProbeResult, error) {
	resolution, err := svc.Resolve(ctx, destination)
	if err != nil {
		return nil, err
	}

	result := &objects.ProbeResult{ProxyResolution: *resolution}
	start := time.Now()

	resp, err := svc.httpClient.Do(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    destination,
	})
	result.Latency = time.Since(start)
	svc.metrics.recordProbe(ctx, result.Route, result.Latency.Seconds(), err != nil)

	var httpErr *httpclient.Error

	switch {
	case err == nil:
		result.StatusCode = resp.StatusCode
	case errors.As(err, &httpErr):
		result.StatusCode = httpErr.StatusCode
		result.Error = httpErr.Error()
	default:
		result.Error = err.Error()
	}

	log.Info(ctx, "probe finished",
		log.String("destination", result.Destination),
		log.String("route", result.Route),
		log.Int("status_code", result.StatusCode),
		log.Duration("latency", result.Latency),
	)

	return result, nil
}

func (svc *ProxyService) Snapshot() webproxy.Snapshot {
	return svc.holder.Load().Snapshot()
}

// UpdateBypassList replaces the bypass list of the running proxy. Globs are translated and
// appended after the patterns. Nothing changes when any entry is invalid.
func (svc *ProxyService) UpdateBypassList(ctx context.Context, patterns []string, globs []string) (webproxy.Snapshot, error) {
	list := make([]string, 0, len(patterns)+len(globs))
	list = append(list, patterns...)
	list = append(list, webproxy.GlobsToPatterns(globs)...)

	if err := svc.setBypassList(list); err != nil {
		log.Warn(ctx, "reject bypass list", log.Cause(err))
		return webproxy.Snapshot{}, err
	}

	svc.metrics.recordRuleChange(ctx, string(rulesync.ChangeBypassList), false)
	svc.publish(ctx, rulesync.Change{Kind: rulesync.ChangeBypassList, BypassList: list})

	log.Info(ctx, "bypass list updated", log.Int("rules", len(list)))

	return svc.Snapshot(), nil
}

// SetBypassOnLocal toggles bypass-on-local of the running proxy.
func (svc *ProxyService) SetBypassOnLocal(ctx context.Context, bypassOnLocal bool) webproxy.Snapshot {
	svc.setBypassOnLocal(bypassOnLocal)
	svc.metrics.recordRuleChange(ctx, string(rulesync.ChangeBypassOnLocal), false)
	svc.publish(ctx, rulesync.Change{Kind: rulesync.ChangeBypassOnLocal, BypassOnLocal: bypassOnLocal})

	log.Info(ctx, "bypass on local updated", log.Bool("bypass_on_local", bypassOnLocal))

	return svc.Snapshot()
}

// Override flags are set under the holder lock, Refresh reads them under the same lock.
func (svc *ProxyService) setBypassList(list []string) error {
	return svc.holder.Update(func(p *webproxy.Proxy) error {
		if err := p.SetBypassList(list); err != nil {
			return err
		}

		svc.bypassListOverridden.Store(true)

		return nil
	})
}

func (svc *ProxyService) setBypassOnLocal(bypassOnLocal bool) {
	_ = svc.holder.Update(func(p *webproxy.Proxy) error {
		p.SetBypassOnLocal(bypassOnLocal)
		svc.bypassOnLocalOverridden.Store(true)

		return nil
	})
}
