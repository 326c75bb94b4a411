package sms

import (
	"github.com/smallbiznis/ordersignal/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.sms",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Provider {
	if cfg.SMSAPIURL == "" {
		return &NoOpProvider{}
	}
	return NewHTTP(Config{
		APIURL: cfg.SMSAPIURL,
		APIKey: cfg.SMSAPIKey,
		Sender: cfg.SMSSender,
	})
}
