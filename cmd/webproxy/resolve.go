package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/objects"
	"github.com/looplj/webproxy/internal/server/biz"
	"github.com/looplj/webproxy/internal/server/dependencies"
	"github.com/looplj/webproxy/internal/webproxy"
)

// positionalArgs drops the format option and its value.
func positionalArgs(args []string) []string {
	var out []string

	for i := 0; i < len(args); i++ {
		if args[i] == "--format" || args[i] == "-f" {
			i++
			continue
		}

		out = append(out, args[i])
	}

	return out
}

func discoverProxy(ctx context.Context) (*webproxy.Holder, error) {
	config := mustLoadConfig()
	log.SetGlobalConfig(config.Log)

	return dependencies.NewProxyHolder(dependencies.NewDiscoverySource(config.Proxy))
}

func handleResolveCommand() {
	ctx := context.Background()
	destinations := positionalArgs(os.Args[2:])

	if len(destinations) == 0 {
		fmt.Println("Usage: webproxy resolve <url>... [--format json|yml]")
		os.Exit(1)
	}

	holder, err := discoverProxy(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover proxy: %v\n", err)
		os.Exit(1)
	}

	p := holder.Load()
	results := make([]*objects.ProxyResolution, 0, len(destinations))
	failed := false

	for _, destination := range destinations {
		resolution, err := biz.ResolveWith(ctx, p, destination)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", destination, err)
			failed = true

			continue
		}

		results = append(results, resolution)
	}

	output, err := render(results, parseFormat(os.Args[2:], "json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render result: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.TrimSpace(output))

	if failed {
		os.Exit(1)
	}
}

func handleProbeCommand() {
	ctx := context.Background()
	destinations := positionalArgs(os.Args[2:])

	if len(destinations) != 1 {
		fmt.Println("Usage: webproxy probe <url> [--format json|yml]")
		os.Exit(1)
	}

	holder, err := discoverProxy(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to discover proxy: %v\n", err)
		os.Exit(1)
	}

	svc := biz.NewProxyService(biz.ProxyServiceParams{
		Holder:     holder,
		HttpClient: dependencies.NewHttpClient(holder),
	})

	result, err := svc.Probe(ctx, destinations[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", destinations[0], err)
		os.Exit(1)
	}

	output, err := render(result, parseFormat(os.Args[2:], "json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render result: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(strings.TrimSpace(output))

	if result.Error != "" {
		os.Exit(1)
	}
}
