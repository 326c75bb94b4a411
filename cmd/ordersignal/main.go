package main

import (
	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/ordersignal/internal/clock"
	"github.com/smallbiznis/ordersignal/internal/company"
	"github.com/smallbiznis/ordersignal/internal/config"
	"github.com/smallbiznis/ordersignal/internal/deliveryrule"
	"github.com/smallbiznis/ordersignal/internal/logger"
	"github.com/smallbiznis/ordersignal/internal/mail"
	"github.com/smallbiznis/ordersignal/internal/mailpool"
	"github.com/smallbiznis/ordersignal/internal/migration"
	"github.com/smallbiznis/ordersignal/internal/notification"
	"github.com/smallbiznis/ordersignal/internal/pipeline"
	"github.com/smallbiznis/ordersignal/internal/plan"
	"github.com/smallbiznis/ordersignal/internal/providers/adminalert"
	"github.com/smallbiznis/ordersignal/internal/providers/alimtalk"
	"github.com/smallbiznis/ordersignal/internal/providers/sms"
	"github.com/smallbiznis/ordersignal/internal/server"
	"github.com/smallbiznis/ordersignal/internal/usage"
	"github.com/smallbiznis/ordersignal/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(RegisterRedis),
		fx.Provide(RegisterMailDialer),
		db.Module,
		clock.Module,
		migration.Module,

		// Outbound integrations
		sms.Module,
		alimtalk.Module,
		adminalert.Module,

		// Functional domains
		mailpool.Module,
		company.Module,
		deliveryrule.Module,
		plan.Module,
		usage.Module,
		notification.Module,
		pipeline.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func RegisterRedis(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// RegisterMailDialer wires the mailbox transport. The no-op dialer keeps the
// service healthy until a real mailbox transport is plugged in; the HTTP
// submission endpoint covers ingestion in the meantime.
func RegisterMailDialer() mail.Dialer {
	return mail.NoOpDialer{}
}
