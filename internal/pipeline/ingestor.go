package pipeline

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/mailpool"
	"go.uber.org/zap"
)

// Ingestor polls the mailbox through the connection pool and feeds new
// messages into the processor.
type Ingestor struct {
	pool        *mailpool.Pool
	proc        *Processor
	log         *zap.Logger
	tenantID    snowflake.ID
	interval    time.Duration
	concurrency int
}

func NewIngestor(pool *mailpool.Pool, proc *Processor, log *zap.Logger, tenantID snowflake.ID, interval time.Duration, concurrency int) *Ingestor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Ingestor{
		pool:        pool,
		proc:        proc,
		log:         log.Named("pipeline.ingestor"),
		tenantID:    tenantID,
		interval:    interval,
		concurrency: concurrency,
	}
}

func (i *Ingestor) RunForever(ctx context.Context) {
	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		if err := i.RunOnce(ctx); err != nil && ctx.Err() == nil {
			i.log.Warn("mailbox poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce fetches new messages over a pooled connection and processes them as
// one batch. A fetch failure marks the connection broken so the pool replaces
// it.
func (i *Ingestor) RunOnce(ctx context.Context) error {
	conn, err := i.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	emails, err := conn.Client().FetchNew(ctx)
	if err != nil {
		conn.MarkBroken()
		i.pool.Release(conn)
		i.log.Warn("fetch failed, connection discarded", zap.String("conn_id", conn.ID()))
		return err
	}
	i.pool.Release(conn)

	if len(emails) == 0 {
		return nil
	}

	summary := i.proc.ProcessBatch(ctx, i.tenantID, emails, i.concurrency)
	i.log.Info("mailbox batch processed",
		zap.Int("fetched", len(emails)),
		zap.Int("processed", summary.Processed),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", summary.Errors))
	return nil
}
