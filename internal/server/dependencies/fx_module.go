package dependencies

import (
	"context"

	"github.com/zhenzou/executors"
	"go.uber.org/fx"

	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/server/rulesync"
)

var Module = fx.Module("dependencies",
	fx.Provide(log.New),
	fx.Provide(NewDiscoverySource),
	fx.Provide(NewProxyHolder),
	fx.Provide(NewHttpClient),
	fx.Provide(NewExecutors),
	fx.Provide(rulesync.New),
	fx.Invoke(func(lc fx.Lifecycle, executor executors.ScheduledExecutor, bus rulesync.Bus) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return executor.Shutdown(ctx)
			},
		})
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return bus.Close()
			},
		})
	}),
)
