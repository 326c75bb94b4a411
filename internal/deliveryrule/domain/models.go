// Package domain holds the per-tenant cutoff rules used to promise delivery
// dates for matched order emails.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DeliveryRule is tenant+region scoped configuration. Exactly one active rule
// is expected per (tenant, region). Cutoff times are "HH:MM" in the tenant's
// local day.
type DeliveryRule struct {
	ID                    snowflake.ID `gorm:"primaryKey"`
	TenantID              snowflake.ID `gorm:"not null;uniqueIndex:idx_delivery_rules_tenant_region,priority:1"`
	Region                string       `gorm:"type:text;not null;uniqueIndex:idx_delivery_rules_tenant_region,priority:2"`
	MorningCutoff         string       `gorm:"type:text;not null"`
	AfternoonCutoff       string       `gorm:"type:text;not null"`
	MorningDeliveryDays   int          `gorm:"not null"`
	AfternoonDeliveryDays int          `gorm:"not null"`
	ExcludeWeekends       bool         `gorm:"not null;default:true"`
	ExcludeHolidays       bool         `gorm:"not null;default:true"`
	CutoffCount           int          `gorm:"not null;default:1"`
	SecondCutoffTime      *string      `gorm:"type:text"`
	AfterSecondCutoffDays *int
	IsActive              bool      `gorm:"not null;default:true"`
	CreatedAt             time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DeliveryRule) TableName() string { return "delivery_rules" }

// Holiday is a tenant-scoped excluded date, stored as "2006-01-02".
type Holiday struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;uniqueIndex:idx_holidays_tenant_date,priority:1"`
	Date     string       `gorm:"type:text;not null;uniqueIndex:idx_holidays_tenant_date,priority:2"`
}

func (Holiday) TableName() string { return "holidays" }

type Service interface {
	// DeliveryDateFor loads the active rule for (tenant, region) and computes
	// the promised delivery date. ErrRuleMissing is a non-fatal warning: the
	// email is still matched and logged, just without an estimate.
	DeliveryDateFor(ctx context.Context, tenantID snowflake.ID, region string, receivedAt time.Time) (time.Time, error)
}

var (
	ErrRuleMissing   = errors.New("delivery_rule_missing")
	ErrInvalidCutoff = errors.New("invalid_cutoff_time")
)
