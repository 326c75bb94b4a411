// Package domain defines per-tenant monthly usage counters and the graded
// quota check consulted before every notification send.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ResourceType string

const (
	ResourceEmail   ResourceType = "email"
	ResourceSMS     ResourceType = "sms"
	ResourceKakao   ResourceType = "kakao"
	ResourceAPICall ResourceType = "api_call"
	ResourceStorage ResourceType = "storage"
)

// AllResourceTypes lists every independent counter, in report order.
var AllResourceTypes = []ResourceType{
	ResourceEmail,
	ResourceSMS,
	ResourceKakao,
	ResourceAPICall,
	ResourceStorage,
}

type WarningLevel string

const (
	WarningNone     WarningLevel = "none"
	WarningWarning  WarningLevel = "warning"
	WarningCritical WarningLevel = "critical"
	WarningExceeded WarningLevel = "exceeded"
)

// LimitStatus answers "is this operation still within plan limits". Allowed
// is false only once usage already exceeds the limit; warning and critical
// flag the operation without blocking it.
type LimitStatus struct {
	ResourceType    ResourceType `json:"resource_type"`
	Allowed         bool         `json:"allowed"`
	CurrentUsage    int64        `json:"current_usage"`
	Limit           int64        `json:"limit"`
	UsagePercentage float64      `json:"usage_percentage"`
	WarningLevel    WarningLevel `json:"warning_level"`
	Message         string       `json:"message,omitempty"`
}

// UsageStatistic is the durable monthly mirror of a counter, maintained by
// the snapshot worker for reporting.
type UsageStatistic struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	TenantID     snowflake.ID `gorm:"not null;uniqueIndex:idx_usage_stats_key,priority:1"`
	ResourceType ResourceType `gorm:"type:text;not null;uniqueIndex:idx_usage_stats_key,priority:2"`
	Month        string       `gorm:"type:text;not null;uniqueIndex:idx_usage_stats_key,priority:3"`
	Count        int64        `gorm:"not null"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (UsageStatistic) TableName() string { return "usage_statistics" }

// CounterStore is the fast shared counter backend. Keys carry the tenant,
// resource type and month bucket; TTL handles month rollover.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, amount int64) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	ExpireAt(ctx context.Context, key string, at time.Time) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

type Service interface {
	IncrementUsage(ctx context.Context, tenantID snowflake.ID, resource ResourceType, amount int64, metadata map[string]any) error
	CheckUsageLimits(ctx context.Context, tenantID snowflake.ID, resource ResourceType) (LimitStatus, error)
	CheckAllUsageLimits(ctx context.Context, tenantID snowflake.ID) ([]LimitStatus, error)
}

var (
	ErrInvalidResource = errors.New("invalid_resource_type")
	ErrInvalidAmount   = errors.New("invalid_amount")
)
