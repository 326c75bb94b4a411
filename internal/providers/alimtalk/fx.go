package alimtalk

import (
	"github.com/smallbiznis/ordersignal/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.alimtalk",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.AlimtalkAPIURL == "" {
		return &NoOpProvider{}
	}
	return NewHTTP(Config{
		APIURL: cfg.AlimtalkAPIURL,
		APIKey: cfg.AlimtalkAPIKey,
	})
}
