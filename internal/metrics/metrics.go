package metrics

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdk "go.opentelemetry.io/otel/sdk/metric"

	"github.com/looplj/webproxy/internal/log"
)

const (
	ExporterStdout = "stdout"

	DefaultInterval = time.Minute
)

type Config struct {
	Enabled  bool          `conf:"enabled" yaml:"enabled" json:"enabled"`
	Exporter string        `conf:"exporter" yaml:"exporter" json:"exporter"`
	Interval time.Duration `conf:"interval" yaml:"interval" json:"interval"`
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Exporter != ExporterStdout {
		return fmt.Errorf("metrics.exporter must be %q, got %q", ExporterStdout, c.Exporter)
	}

	if c.Interval < 0 {
		return fmt.Errorf("metrics.interval must not be negative")
	}

	return nil
}

// NewProvider builds the meter provider. It returns nil when metrics are disabled.
func NewProvider(cfg Config) (*sdk.MeterProvider, error) {
	return newProvider(cfg, os.Stdout)
}

func newProvider(cfg Config, out io.Writer) (*sdk.MeterProvider, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultInterval
	}

	return sdk.NewMeterProvider(
		sdk.WithReader(sdk.NewPeriodicReader(exporter, sdk.WithInterval(interval))),
	), nil
}

// SetupMetrics installs provider as the global meter provider.
func SetupMetrics(provider *sdk.MeterProvider, serviceName string) error {
	if provider == nil {
		return fmt.Errorf("meter provider is nil")
	}

	otel.SetMeterProvider(provider)

	log.Info(context.Background(), "metrics enabled", log.String("service", serviceName))

	return nil
}
