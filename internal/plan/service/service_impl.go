package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/plan/domain"
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
	log        *zap.Logger
	planRepo   repository.Repository[domain.Plan]
	tenantRepo repository.Repository[domain.TenantPlan]
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		log:        p.Log.Named("plan.service"),
		planRepo:   repository.ProvideStore[domain.Plan](p.DB),
		tenantRepo: repository.ProvideStore[domain.TenantPlan](p.DB),
	}
}

func (s *Service) LimitFor(ctx context.Context, tenantID snowflake.ID, resource string) (int64, error) {
	assignment, err := s.tenantRepo.FindOne(ctx, &domain.TenantPlan{TenantID: tenantID})
	if err != nil {
		return 0, err
	}
	if assignment == nil {
		return domain.DefaultPlan.LimitFor(resource), nil
	}

	plan, err := s.planRepo.FindOne(ctx, &domain.Plan{ID: assignment.PlanID})
	if err != nil {
		return 0, err
	}
	if plan == nil {
		return domain.DefaultPlan.LimitFor(resource), nil
	}
	return plan.LimitFor(resource), nil
}
