// Package snapshot mirrors the fast Redis usage counters into durable
// monthly statistics rows for reporting.
package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/ordersignal/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Config struct {
	PollInterval time.Duration
	RunTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Second
	}
	return c
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Store  usagedomain.CounterStore
	GenID  *snowflake.Node
	Config Config `optional:"true"`
}

type Worker struct {
	db    *gorm.DB
	log   *zap.Logger
	store usagedomain.CounterStore
	genID *snowflake.Node
	cfg   Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:    p.DB,
		log:   p.Log.Named("usage.snapshot"),
		store: p.Store,
		genID: p.GenID,
		cfg:   p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("usage snapshot run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(parentCtx context.Context) error {
	ctx, cancel := context.WithTimeout(parentCtx, w.cfg.RunTimeout)
	defer cancel()

	keys, err := w.store.Keys(ctx, "usage:*")
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, key := range keys {
		tenantID, resource, month, ok := parseCounterKey(key)
		if !ok {
			continue
		}
		count, err := w.store.Get(ctx, key)
		if err != nil {
			w.log.Warn("snapshot read failed", zap.String("key", key), zap.Error(err))
			continue
		}

		row := usagedomain.UsageStatistic{
			ID:           w.genID.Generate(),
			TenantID:     tenantID,
			ResourceType: resource,
			Month:        month,
			Count:        count,
			UpdatedAt:    now,
		}
		err = w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "resource_type"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"count", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			w.log.Warn("snapshot upsert failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func parseCounterKey(key string) (snowflake.ID, usagedomain.ResourceType, string, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "usage" {
		return 0, "", "", false
	}
	tenantID, err := snowflake.ParseString(parts[1])
	if err != nil {
		return 0, "", "", false
	}
	return tenantID, usagedomain.ResourceType(parts[2]), parts[3], true
}
