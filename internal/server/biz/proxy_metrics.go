package biz

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/looplj/webproxy/internal/log"
)

const meterName = "github.com/looplj/webproxy/internal/server/biz"

type proxyMetrics struct {
	resolutions   metric.Int64Counter
	probeDuration metric.Float64Histogram
	refreshes     metric.Int64Counter
	ruleChanges   metric.Int64Counter
}

// newProxyMetrics falls back to the global provider, which forwards to the one installed
// at startup.
func newProxyMetrics(provider metric.MeterProvider) *proxyMetrics {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}

	meter := provider.Meter(meterName)
	m := &proxyMetrics{}

	var err error

	m.resolutions, err = meter.Int64Counter("webproxy.resolutions",
		metric.WithDescription("Destinations resolved, by route"))
	logInstrumentErr(err)

	m.probeDuration, err = meter.Float64Histogram("webproxy.probe.duration",
		metric.WithDescription("Probe round trip time"),
		metric.WithUnit("s"))
	logInstrumentErr(err)

	m.refreshes, err = meter.Int64Counter("webproxy.refreshes",
		metric.WithDescription("Discovery refreshes, by result"))
	logInstrumentErr(err)

	m.ruleChanges, err = meter.Int64Counter("webproxy.rule_changes",
		metric.WithDescription("Bypass rule changes, by kind and origin"))
	logInstrumentErr(err)

	return m
}

func logInstrumentErr(err error) {
	if err != nil {
		log.Warn(context.Background(), "failed to create instrument", log.Cause(err))
	}
}

func (m *proxyMetrics) recordResolution(ctx context.Context, route string) {
	m.resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

func (m *proxyMetrics) recordProbe(ctx context.Context, route string, seconds float64, failed bool) {
	m.probeDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("route", route),
		attribute.Bool("failed", failed),
	))
}

func (m *proxyMetrics) recordRefresh(ctx context.Context, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *proxyMetrics) recordRuleChange(ctx context.Context, kind string, remote bool) {
	origin := "local"
	if remote {
		origin = "remote"
	}

	m.ruleChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("origin", origin),
	))
}
