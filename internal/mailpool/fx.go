package mailpool

import (
	"context"

	"github.com/smallbiznis/ordersignal/internal/config"
	"github.com/smallbiznis/ordersignal/internal/mail"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewFromConfig(lc fx.Lifecycle, cfg config.Config, dialer mail.Dialer, log *zap.Logger) (*Pool, error) {
	pool, err := New(Config{
		MinConns:       cfg.PoolMin,
		MaxConns:       cfg.PoolMax,
		IdleTimeout:    cfg.PoolIdleTimeout,
		ConnectTimeout: cfg.PoolConnectTimeout,
	}, dialer, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

var Module = fx.Module("mailpool",
	fx.Provide(NewFromConfig),
)
