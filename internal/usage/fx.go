package usage

import (
	"context"

	"github.com/smallbiznis/ordersignal/internal/usage/counter"
	"github.com/smallbiznis/ordersignal/internal/usage/service"
	"github.com/smallbiznis/ordersignal/internal/usage/snapshot"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(
		counter.NewRedis,
		service.NewService,
		snapshot.NewWorker,
	),
	fx.Invoke(runSnapshotWorker),
)

func runSnapshotWorker(lc fx.Lifecycle, worker *snapshot.Worker) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
