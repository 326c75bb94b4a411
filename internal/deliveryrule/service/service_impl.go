package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/deliveryrule/domain"
	"github.com/smallbiznis/ordersignal/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	log         *zap.Logger
	ruleRepo    repository.Repository[domain.DeliveryRule]
	holidayRepo repository.Repository[domain.Holiday]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:         p.Log.Named("deliveryrule.service"),
		ruleRepo:    repository.ProvideStore[domain.DeliveryRule](p.DB),
		holidayRepo: repository.ProvideStore[domain.Holiday](p.DB),
	}
}

func (s *Service) DeliveryDateFor(ctx context.Context, tenantID snowflake.ID, region string, receivedAt time.Time) (time.Time, error) {
	rule, err := s.ruleRepo.FindOne(ctx, &domain.DeliveryRule{
		TenantID: tenantID,
		Region:   region,
		IsActive: true,
	})
	if err != nil {
		return time.Time{}, err
	}
	if rule == nil {
		return time.Time{}, domain.ErrRuleMissing
	}

	holidays := map[string]bool{}
	if rule.ExcludeHolidays {
		rows, err := s.holidayRepo.Find(ctx, &domain.Holiday{TenantID: tenantID})
		if err != nil {
			return time.Time{}, err
		}
		for _, row := range rows {
			holidays[row.Date] = true
		}
	}

	return domain.ComputeDeliveryDate(receivedAt, *rule, holidays)
}
