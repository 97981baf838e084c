package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/looplj/webproxy/internal/log"
	"github.com/looplj/webproxy/internal/server/api"
	"github.com/looplj/webproxy/internal/server/biz"
	"github.com/looplj/webproxy/internal/server/dependencies"
	"github.com/looplj/webproxy/internal/server/middleware"
)

func New(config Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())

	return &Server{
		Config: config,
		Engine: engine,
	}
}

type Server struct {
	*gin.Engine

	Config Config
	server *http.Server
	addr   string
}

func (srv *Server) Run() error {
	log.Info(context.Background(), "run server",
		log.String("name", srv.Config.Name),
		log.String("host", srv.Config.Host),
		log.Int("port", srv.Config.Port),
	)
	addr := fmt.Sprintf("%s:%d", srv.Config.Host, srv.Config.Port)
	srv.server = &http.Server{
		Addr:         addr,
		Handler:      srv.Engine,
		ReadTimeout:  srv.Config.ReadTimeout,
		WriteTimeout: srv.Config.RequestTimeout,
	}
	srv.addr = addr

	err := srv.server.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}

	return nil
}

func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.server == nil {
		return nil
	}

	return srv.server.Shutdown(ctx)
}

func Run(opts ...fx.Option) {
	app := fx.New(
		append([]fx.Option{
			fx.NopLogger,
			fx.Provide(New),
			dependencies.Module,
			biz.Module,
			api.Module,
			fx.Invoke(installLogger),
			fx.Invoke(func(lc fx.Lifecycle, proxyService *biz.ProxyService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return proxyService.Start(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return proxyService.Stop(ctx)
					},
				})
			}),
			fx.Invoke(SetupRoutes),
		}, opts...)...,
	)
	app.Run()
}

// installLogger makes the provided logger the global one, so a single writer owns the
// log file.
func installLogger(logger *log.Logger) {
	log.SetGlobalLogger(logger)
	slog.SetDefault(logger.AsSlog())
}
