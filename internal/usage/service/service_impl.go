package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ordersignal/internal/clock"
	plandomain "github.com/smallbiznis/ordersignal/internal/plan/domain"
	usagedomain "github.com/smallbiznis/ordersignal/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CounterKey builds the shared counter key for one tenant, resource type and
// month bucket. The snapshot worker parses it back with ParseCounterKey.
func CounterKey(tenantID snowflake.ID, resource usagedomain.ResourceType, month string) string {
	return fmt.Sprintf("usage:%s:%s:%s", tenantID.String(), resource, month)
}

type ServiceParam struct {
	fx.In

	Log   *zap.Logger
	Store usagedomain.CounterStore
	Plans plandomain.Service
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	store usagedomain.CounterStore
	plans plandomain.Service
	clock clock.Clock
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		log:   p.Log.Named("usage.service"),
		store: p.Store,
		plans: p.Plans,
		clock: p.Clock,
	}
}

func validResource(resource usagedomain.ResourceType) bool {
	for _, rt := range usagedomain.AllResourceTypes {
		if rt == resource {
			return true
		}
	}
	return false
}

// IncrementUsage atomically adds amount to the tenant's current-month counter
// and extends its TTL past the month boundary. Concurrent increments never
// lose updates; the store's increment is the single synchronization point.
func (s *Service) IncrementUsage(ctx context.Context, tenantID snowflake.ID, resource usagedomain.ResourceType, amount int64, metadata map[string]any) error {
	if !validResource(resource) {
		return usagedomain.ErrInvalidResource
	}
	if amount <= 0 {
		return usagedomain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	key := CounterKey(tenantID, resource, now.Format("2006-01"))
	value, err := s.store.IncrBy(ctx, key, amount)
	if err != nil {
		return err
	}
	// Expire after the month boundary, with slack for the final snapshot run.
	boundary := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	if err := s.store.ExpireAt(ctx, key, boundary.Add(72*time.Hour)); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("tenant_id", tenantID.String()),
		zap.String("resource", string(resource)),
		zap.Int64("amount", amount),
		zap.Int64("total", value),
	}
	if len(metadata) > 0 {
		fields = append(fields, zap.Any("metadata", metadata))
	}
	s.log.Debug("usage incremented", fields...)
	return nil
}

func (s *Service) CheckUsageLimits(ctx context.Context, tenantID snowflake.ID, resource usagedomain.ResourceType) (usagedomain.LimitStatus, error) {
	if !validResource(resource) {
		return usagedomain.LimitStatus{}, usagedomain.ErrInvalidResource
	}

	limit, err := s.plans.LimitFor(ctx, tenantID, string(resource))
	if err != nil {
		return usagedomain.LimitStatus{}, err
	}

	month := s.clock.Now().UTC().Format("2006-01")
	current, err := s.store.Get(ctx, CounterKey(tenantID, resource, month))
	if err != nil {
		return usagedomain.LimitStatus{}, err
	}

	return grade(resource, current, limit), nil
}

func (s *Service) CheckAllUsageLimits(ctx context.Context, tenantID snowflake.ID) ([]usagedomain.LimitStatus, error) {
	statuses := make([]usagedomain.LimitStatus, 0, len(usagedomain.AllResourceTypes))
	for _, resource := range usagedomain.AllResourceTypes {
		status, err := s.CheckUsageLimits(ctx, tenantID, resource)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// grade maps usage against the cap: none <80%, warning 80-89%, critical
// 90-99%, exceeded >=100%. Only usage beyond the cap blocks the operation.
func grade(resource usagedomain.ResourceType, current, limit int64) usagedomain.LimitStatus {
	status := usagedomain.LimitStatus{
		ResourceType: resource,
		Allowed:      true,
		CurrentUsage: current,
		Limit:        limit,
		WarningLevel: usagedomain.WarningNone,
	}
	if limit <= 0 {
		return status
	}

	pct := float64(current) * 100 / float64(limit)
	status.UsagePercentage = math.Round(pct*100) / 100

	switch {
	case pct >= 100:
		status.WarningLevel = usagedomain.WarningExceeded
		status.Allowed = current <= limit
		status.Message = fmt.Sprintf("monthly %s limit of %d exceeded (current: %d)", resource, limit, current)
	case pct >= 90:
		status.WarningLevel = usagedomain.WarningCritical
		status.Message = fmt.Sprintf("%s usage at %.0f%% of monthly limit", resource, pct)
	case pct >= 80:
		status.WarningLevel = usagedomain.WarningWarning
		status.Message = fmt.Sprintf("%s usage at %.0f%% of monthly limit", resource, pct)
	}
	return status
}
