package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/looplj/webproxy/internal/server/api"
	"github.com/looplj/webproxy/internal/server/middleware"
)

type Handlers struct {
	fx.In

	Proxy  *api.ProxyHandlers
	System *api.SystemHandlers
}

func SetupRoutes(server *Server, handlers Handlers) {
	server.Use(middleware.WithRequestID(server.Config.RequestIDHeader))
	server.Use(middleware.AccessLog())

	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = server.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = server.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = server.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials
		corsConfig.MaxAge = server.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		server.Use(corsHandler)
		server.OPTIONS("*any", corsHandler)
	}

	base := server.Group(server.Config.BasePath, middleware.WithTimeout(server.Config.RequestTimeout))

	// Health check endpoint
	base.GET("/health", handlers.System.Health)

	proxyGroup := base.Group("/v1/proxy")
	{
		proxyGroup.GET("", handlers.Proxy.Resolve)
		proxyGroup.GET("/config", handlers.Proxy.GetConfig)
		proxyGroup.PUT("/bypass_list", handlers.Proxy.UpdateBypassList)
		proxyGroup.PUT("/bypass_on_local", handlers.Proxy.UpdateBypassOnLocal)
		proxyGroup.POST("/refresh", handlers.Proxy.Refresh)

		if server.Config.EnableProbe {
			proxyGroup.GET("/probe", handlers.Proxy.Probe)
		}
	}
}
