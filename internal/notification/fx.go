package notification

import (
	"github.com/smallbiznis/ordersignal/internal/config"
	"github.com/smallbiznis/ordersignal/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(
		newOptions,
		service.NewDispatcher,
	),
)

func newOptions(cfg config.Config) service.Options {
	return service.Options{
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
		SendTimeout:   cfg.SendTimeout,
		FanOutLimit:   cfg.FanOutLimit,
	}
}
