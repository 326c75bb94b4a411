// Package migration creates the schema on startup so the service is usable
// out of the box for local and self-hosted environments.
package migration

import (
	companydomain "github.com/smallbiznis/ordersignal/internal/company/domain"
	deliverydomain "github.com/smallbiznis/ordersignal/internal/deliveryrule/domain"
	emaildomain "github.com/smallbiznis/ordersignal/internal/email/domain"
	notifdomain "github.com/smallbiznis/ordersignal/internal/notification/domain"
	plandomain "github.com/smallbiznis/ordersignal/internal/plan/domain"
	usagedomain "github.com/smallbiznis/ordersignal/internal/usage/domain"
	"gorm.io/gorm"
)

func Run(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&emaildomain.EmailLog{},
		&companydomain.Company{},
		&companydomain.Contact{},
		&deliverydomain.DeliveryRule{},
		&deliverydomain.Holiday{},
		&notifdomain.NotificationLog{},
		&notifdomain.NotificationRetryLog{},
		&usagedomain.UsageStatistic{},
		&plandomain.Plan{},
		&plandomain.TenantPlan{},
	)
}
