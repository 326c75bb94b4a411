package pipeline

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/config"
	"github.com/smallbiznis/ordersignal/internal/mailpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("pipeline",
	fx.Provide(
		newTxWriter,
		NewProcessor,
		newSubmitter,
		newIngestor,
	),
	fx.Invoke(runIngestor),
)

func newTxWriter(db *gorm.DB, log *zap.Logger, cfg config.Config) *TxWriter {
	return NewTxWriter(db, log, cfg.StrictTxMode)
}

func newSubmitter(lc fx.Lifecycle, proc *Processor, log *zap.Logger, cfg config.Config) *Submitter {
	s := NewSubmitter(proc, log, cfg.QueueSize)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			s.Stop()
			return nil
		},
	})
	return s
}

func newIngestor(pool *mailpool.Pool, proc *Processor, log *zap.Logger, cfg config.Config) (*Ingestor, error) {
	tenantID, err := snowflake.ParseString(cfg.TenantID)
	if err != nil {
		return nil, err
	}
	return NewIngestor(pool, proc, log, tenantID, cfg.FetchInterval, cfg.BatchSize), nil
}

func runIngestor(lc fx.Lifecycle, ingestor *Ingestor) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go ingestor.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
