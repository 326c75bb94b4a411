package adminalert

import (
	"github.com/smallbiznis/ordersignal/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.adminalert",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Sink {
	if cfg.AdminWebhookURL == "" {
		return &NoOpSink{}
	}
	return NewWebhook(cfg.AdminWebhookURL)
}
