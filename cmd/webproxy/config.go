package main

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/looplj/webproxy/conf"
)

func validateConfig(config conf.Config) []string {
	err := config.Validate()
	if err == nil {
		return nil
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}

	problems := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		problems = append(problems, e.Error())
	}

	return problems
}

func configValue(config conf.Config, key string) (any, bool) {
	switch key {
	case "server.host":
		return config.APIServer.Host, true
	case "server.port":
		return config.APIServer.Port, true
	case "server.name":
		return config.APIServer.Name, true
	case "server.base_path":
		return config.APIServer.BasePath, true
	case "server.debug":
		return config.APIServer.Debug, true
	case "server.enable_probe":
		return config.APIServer.EnableProbe, true
	case "log.level":
		return config.Log.Level, true
	case "proxy.type":
		return config.Proxy.Type, true
	case "proxy.url":
		return config.Proxy.URL, true
	case "proxy.bypass_on_local":
		return config.Proxy.BypassOnLocal, true
	case "proxy.bypass_list":
		return strings.Join(config.Proxy.BypassList, "\n"), true
	case "proxy.no_proxy":
		return strings.Join(config.Proxy.NoProxy, ","), true
	case "proxy.refresh_cron":
		return config.Proxy.RefreshCron, true
	case "sync.mode":
		return config.Sync.Mode, true
	case "metrics.enabled":
		return config.Metrics.Enabled, true
	default:
		return nil, false
	}
}
