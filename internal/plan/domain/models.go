// Package domain describes subscription plans as the pipeline sees them:
// a set of monthly caps per resource type. Billing itself is out of scope.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan holds monthly limits per resource type. A limit of 0 means unlimited.
type Plan struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Code         string       `gorm:"type:text;not null;uniqueIndex"`
	Name         string       `gorm:"type:text;not null"`
	EmailLimit   int64        `gorm:"not null;default:0"`
	SMSLimit     int64        `gorm:"not null;default:0"`
	KakaoLimit   int64        `gorm:"not null;default:0"`
	APICallLimit int64        `gorm:"not null;default:0"`
	StorageLimit int64        `gorm:"not null;default:0"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Plan) TableName() string { return "plans" }

// TenantPlan assigns a plan to a tenant.
type TenantPlan struct {
	TenantID  snowflake.ID `gorm:"primaryKey"`
	PlanID    snowflake.ID `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TenantPlan) TableName() string { return "tenant_plans" }

// LimitFor returns the plan's cap for a resource type string as used by the
// usage tracker.
func (p Plan) LimitFor(resource string) int64 {
	switch resource {
	case "email":
		return p.EmailLimit
	case "sms":
		return p.SMSLimit
	case "kakao":
		return p.KakaoLimit
	case "api_call":
		return p.APICallLimit
	case "storage":
		return p.StorageLimit
	default:
		return 0
	}
}

type Service interface {
	// LimitFor resolves the tenant's monthly cap for a resource type,
	// falling back to the default plan when the tenant has no assignment.
	LimitFor(ctx context.Context, tenantID snowflake.ID, resource string) (int64, error)
}

// DefaultPlan is used for tenants without an explicit assignment.
var DefaultPlan = Plan{
	Code:         "free",
	Name:         "Free",
	EmailLimit:   500,
	SMSLimit:     200,
	KakaoLimit:   200,
	APICallLimit: 10000,
	StorageLimit: 1024,
}
