package deliveryrule

import (
	"github.com/smallbiznis/ordersignal/internal/deliveryrule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deliveryrule.service",
	fx.Provide(service.NewService),
)
