package company

import (
	"github.com/smallbiznis/ordersignal/internal/company/extract"
	"github.com/smallbiznis/ordersignal/internal/company/service"
	"github.com/smallbiznis/ordersignal/internal/company/tracker"
	"go.uber.org/fx"
)

var Module = fx.Module("company.service",
	fx.Provide(
		extract.New,
		tracker.NewRedis,
		service.NewService,
	),
)
