package main

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/andreazorzetto/yh/highlight"
	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"gopkg.in/yaml.v3"

	sdk "go.opentelemetry.io/otel/sdk/metric"

	"github.com/looplj/webproxy/conf"
	"github.com/looplj/webproxy/internal/build"
	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/metrics"
	"github.com/looplj/webproxy/internal/server"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
		case "resolve":
			handleResolveCommand()
			return
		case "probe":
			handleProbeCommand()
			return
		case "config":
			handleConfigCommand()
			return
		case "version", "--version", "-v":
			showVersion()
			return
		case "help", "--help", "-h":
			showHelp()
			return
		case "build-info":
			showBuildInfo()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
			showHelp()
			os.Exit(1)
		}
	}

	startServer()
}

// loadConfig honours WEBPROXY_CONFIG as an explicit config file path.
func loadConfig() (conf.Config, error) {
	if path := os.Getenv("WEBPROXY_CONFIG"); path != "" {
		return conf.LoadFile(path)
	}

	return conf.Load()
}

func mustLoadConfig() conf.Config {
	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	return config
}

func showBuildInfo() {
	fmt.Println(build.GetBuildInfo())
}

type logger struct{}

func (l *logger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func startServer() {
	server.Run(
		fx.WithLogger(func() fxevent.Logger {
			return &logger{}
		}),
		fx.Provide(loadConfig),
		fx.Provide(metrics.NewProvider),
		fx.Invoke(func(lc fx.Lifecycle, server *server.Server, provider *sdk.MeterProvider, logger *log.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if provider != nil {
						return metrics.SetupMetrics(provider, server.Config.Name)
					}

					return nil
				},
				OnStop: func(ctx context.Context) error {
					if provider != nil {
						return provider.Shutdown(ctx)
					}

					return nil
				},
			})
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						err := server.Run()
						if err != nil {
							log.Error(context.Background(), "server run error:", log.Cause(err))
							os.Exit(1)
						}
					}()

					return nil
				},
				OnStop: func(ctx context.Context) error {
					err := server.Shutdown(ctx)
					if err != nil {
						log.Error(context.Background(), "server shutdown error:", log.Cause(err))
					}

					_ = logger.Sync()

					return nil
				},
			})
		}),
	)
}

func handleConfigCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: webproxy config <preview|validate|get>")
		os.Exit(1)
	}

	switch os.Args[2] {
	case "preview":
		configPreview()
	case "validate":
		configValidate()
	case "get":
		configGet()
	default:
		fmt.Println("Usage: webproxy config <preview|validate|get>")
		os.Exit(1)
	}
}

func parseFormat(args []string, fallback string) string {
	format := fallback

	for i := 0; i < len(args); i++ {
		if args[i] == "--format" || args[i] == "-f" {
			if i+1 < len(args) {
				format = args[i+1]
			}
		}
	}

	return format
}

func render(v any, format string) (string, error) {
	switch format {
	case "json":
		b, err := prettyjson.Marshal(v)
		if err != nil {
			return "", err
		}

		return string(b), nil
	case "yml", "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}

		return highlight.Highlight(bytes.NewBuffer(b))
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func configPreview() {
	config := mustLoadConfig()

	output, err := render(config, parseFormat(os.Args[3:], "yml"))
	if err != nil {
		fmt.Printf("Failed to preview config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(output)
}

func configValidate() {
	config := mustLoadConfig()

	errors := validateConfig(config)

	if len(errors) == 0 {
		fmt.Println("Configuration is valid!")
		return
	}

	fmt.Println("Configuration validation failed:")

	for _, err := range errors {
		fmt.Printf("  - %s\n", err)
	}

	os.Exit(1)
}

func configGet() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: webproxy config get <key>")
		fmt.Println("")
		fmt.Println("Available keys:")
		fmt.Println("  server.port             Server port number")
		fmt.Println("  server.name             Server name")
		fmt.Println("  proxy.type              Proxy discovery type")
		fmt.Println("  proxy.url               Proxy address")
		fmt.Println("  proxy.bypass_on_local   Bypass local destinations")
		fmt.Println("  proxy.bypass_list       Bypass patterns")
		fmt.Println("  proxy.no_proxy          Bypass globs")
		os.Exit(1)
	}

	value, ok := configValue(mustLoadConfig(), os.Args[3])
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", os.Args[3])
		os.Exit(1)
	}

	fmt.Println(value)
}

func showHelp() {
	fmt.Println("WebProxy proxy resolution service")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  webproxy                        Start the server (default)")
	fmt.Println("  webproxy serve                  Start the server")
	fmt.Println("  webproxy resolve <url>...       Show how each destination is routed")
	fmt.Println("  webproxy probe <url>            Send a GET along the resolved route")
	fmt.Println("  webproxy config preview         Preview configuration")
	fmt.Println("  webproxy config validate        Validate configuration")
	fmt.Println("  webproxy config get <key>       Get a specific config value")
	fmt.Println("  webproxy version                Show version")
	fmt.Println("  webproxy build-info             Show build information")
	fmt.Println("  webproxy help                   Show this help message")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -f, --format FORMAT       Output format for config preview, resolve and probe (yml, json)")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  WEBPROXY_CONFIG           Config file to load instead of searching for config.yml")
}

func showVersion() {
	fmt.Println(build.Version)
}
